package tiktok

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNotTikTokURL    = errors.New("please enter a valid TikTok URL")
	ErrMissingMusicID  = errors.New("could not extract the audio id from the URL")
	ErrInvalidUsername = errors.New("invalid username: only letters, numbers, dots, dashes and underscores are allowed")
)

// MinMusicIDLength is the shortest run of digits accepted as an audio-track id.
const MinMusicIDLength = 15

var (
	// Ordered from most to least reliable.
	musicIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`share_music_id=(\d+)`),
		regexp.MustCompile(`/music/[^/]*-(\d{15,})`),
		regexp.MustCompile(`/music/.*?(\d{15,})`),
	}
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	photoPathRegex = regexp.MustCompile(`/photo/(\d+)`)
)

var shortLinkHosts = map[string]bool{
	"vm.tiktok.com": true,
	"vt.tiktok.com": true,
}

// Validate checks that raw is an http(s) URL on tiktok.com or one of its subdomains.
func Validate(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("URL is required")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, ErrNotTikTokURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrNotTikTokURL
	}

	host := strings.ToLower(parsed.Hostname())
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		log.Tracef("rejecting non-TikTok host %q", host)
		return nil, ErrNotTikTokURL
	}
	return parsed, nil
}

// Normalize strips the query and fragment and rewrites /photo/<id> to
// /video/<id>, which is the only form yt-dlp understands. Only a segment
// followed by a numeric id is rewritten, so Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	clean := raw
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	return photoPathRegex.ReplaceAllString(clean, "/video/$1")
}

// IsShortLink reports whether raw points at one of the vm./vt. redirect hosts.
func IsShortLink(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return shortLinkHosts[strings.ToLower(parsed.Hostname())]
}

func IsMusicURL(raw string) bool {
	return strings.Contains(raw, "/music/")
}

func IsPhotoURL(raw string) bool {
	return strings.Contains(raw, "/photo/")
}

// ExtractMusicID pulls the numeric audio-track id out of a /music/ URL.
func ExtractMusicID(raw string) (string, error) {
	for _, pattern := range musicIDPatterns {
		if matches := pattern.FindStringSubmatch(raw); len(matches) > 1 {
			id := matches[1]
			if len(id) < MinMusicIDLength {
				// share_music_id can match a short run; keep looking
				continue
			}
			log.Tracef("extracted music id %s with %s", id, pattern)
			return id, nil
		}
	}
	return "", ErrMissingMusicID
}

func VideoURL(handle, videoID string) string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", strings.TrimPrefix(handle, "@"), videoID)
}

func UserURL(username string) string {
	return "https://www.tiktok.com/@" + username
}

// ParseUsername strips a leading @ and validates the handle charset.
func ParseUsername(raw string) (string, error) {
	username := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !usernameRegex.MatchString(username) {
		return "", ErrInvalidUsername
	}
	return username, nil
}
