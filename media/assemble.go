package media

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"tokgrab/models"
	"tokgrab/ytdlp"
)

const placeholderThumbnail = "https://picsum.photos/seed/tiktok/1280/720"

// textRule reads the first non-empty key, else the fallback.
type textRule struct {
	keys     []string
	fallback string
}

func (r textRule) read(meta ytdlp.Metadata) string {
	if s, ok := meta.String(r.keys...); ok {
		return s
	}
	return r.fallback
}

// numberRule reads the first non-zero key, else the fallback.
type numberRule struct {
	keys     []string
	fallback float64
}

func (r numberRule) read(meta ytdlp.Metadata) float64 {
	if n, ok := meta.Number(r.keys...); ok {
		return n
	}
	return r.fallback
}

// Field precedence for the assembled response.
var (
	titleRule       = textRule{[]string{"title", "description"}, "TikTok Content"}
	descriptionRule = textRule{[]string{"description", "title"}, "No description available"}
	hashtagTextRule = textRule{[]string{"description", "title"}, ""}
	thumbnailRule   = textRule{[]string{"thumbnail"}, ""}
	formatRule      = textRule{[]string{"ext"}, "mp4"}
	codecRule       = textRule{[]string{"vcodec"}, "H.264"}
	audioCodecRule  = textRule{[]string{"acodec"}, "AAC"}
	usernameRule    = textRule{[]string{"uploader_id", "uploader"}, "Unknown"}
	nicknameRule    = textRule{[]string{"uploader", "creator"}, "TikTok User"}
	avatarRule      = textRule{[]string{"uploader_url", "channel_url"}, ""}
	trackRule       = textRule{[]string{"track", "alt_title"}, "Original Sound"}
	artistRule      = textRule{[]string{"artist", "uploader"}, "Unknown Artist"}
	videoIDRule     = textRule{[]string{"id", "display_id"}, "unknown"}

	widthRule    = numberRule{[]string{"width"}, 1080}
	heightRule   = numberRule{[]string{"height"}, 1920}
	fpsRule      = numberRule{[]string{"fps"}, 30}
	channelsRule = numberRule{[]string{"audio_channels"}, 2}
	viewsRule    = numberRule{[]string{"view_count"}, 0}
	likesRule    = numberRule{[]string{"like_count"}, 0}
	commentsRule = numberRule{[]string{"comment_count"}, 0}
	sharesRule   = numberRule{[]string{"repost_count"}, 0}
	favsRule     = numberRule{[]string{"bookmark_count"}, 0}
)

var hashtagRegex = regexp.MustCompile(`#([\p{L}\p{N}\p{M}_]+)`)

// Assemble maps a metadata document into the response the front-end renders.
// canonicalURL is the URL the download links point back to.
func Assemble(canonicalURL string, meta ytdlp.Metadata, contentType models.ContentType, images []models.SlideshowImage) models.NormalizedMedia {
	thumbnail := thumbnailRule.read(meta)
	if thumbnail == "" && len(images) > 0 {
		thumbnail = images[0].URL
	}
	if thumbnail == "" {
		thumbnail = placeholderThumbnail
	}

	result := models.NormalizedMedia{
		ContentType: contentType,
		VideoURL:    DownloadLink(models.ContentVideo, canonicalURL),
		AudioURL:    DownloadLink(models.ContentAudio, canonicalURL),
		Thumbnail:   thumbnail,
		Title:       titleRule.read(meta),
		Description: descriptionRule.read(meta),
		Metadata:    technicalInfo(meta),
		Creator: models.Creator{
			Username: usernameRule.read(meta),
			Nickname: nicknameRule.read(meta),
			Avatar:   avatarRule.read(meta),
			Verified: meta.Bool("uploader_verified"),
		},
		Stats: models.Stats{
			Views:     int64(viewsRule.read(meta)),
			Likes:     int64(likesRule.read(meta)),
			Comments:  int64(commentsRule.read(meta)),
			Shares:    int64(sharesRule.read(meta)),
			Favorites: int64(favsRule.read(meta)),
		},
		Audio: models.AudioInfo{
			Title:  trackRule.read(meta),
			Author: artistRule.read(meta),
		},
		Hashtags:   ExtractHashtags(hashtagTextRule.read(meta)),
		UploadDate: FormatUploadDate(meta),
		VideoID:    videoIDRule.read(meta),
	}
	if len(images) > 0 {
		result.Images = images
	}
	return result
}

func technicalInfo(meta ytdlp.Metadata) models.TechnicalInfo {
	width := int(widthRule.read(meta))
	height := int(heightRule.read(meta))

	duration, _ := meta.Number("duration")
	videoSize, _ := meta.Number("filesize", "filesize_approx")
	audioSize, ok := meta.Number("audio_filesize")
	if !ok {
		approx, _ := meta.Number("filesize_approx")
		audioSize = approx * 0.1
	}

	bitrate := "N/A"
	if tbr, ok := meta.Number("tbr"); ok {
		bitrate = fmt.Sprintf("%d kbps", int(math.Round(tbr)))
	}
	sampleRate := "44.1 kHz"
	if asr, ok := meta.Number("asr"); ok {
		sampleRate = fmt.Sprintf("%.1f kHz", asr/1000)
	}

	return models.TechnicalInfo{
		Duration:        FormatDuration(duration),
		VideoSize:       FormatFileSize(videoSize),
		AudioSize:       FormatFileSize(audioSize),
		Resolution:      fmt.Sprintf("%dx%d", width, height),
		Format:          strings.ToUpper(formatRule.read(meta)),
		Codec:           codecRule.read(meta),
		FPS:             fpsRule.read(meta),
		Bitrate:         bitrate,
		Width:           width,
		Height:          height,
		AudioCodec:      audioCodecRule.read(meta),
		AudioChannels:   int(channelsRule.read(meta)),
		AudioSampleRate: sampleRate,
	}
}

// Summarize builds the compact per-URL record used by the metadata batch.
func Summarize(meta ytdlp.Metadata) models.MetadataSummary {
	str := func(keys ...string) string {
		s, _ := meta.String(keys...)
		return s
	}
	num := func(key string) float64 {
		n, _ := meta.Number(key)
		return n
	}
	return models.MetadataSummary{
		ID:          str("id"),
		Title:       str("title", "description"),
		Description: str("description"),
		Creator:     str("uploader", "creator"),
		Views:       int64(num("view_count")),
		Likes:       int64(num("like_count")),
		Comments:    int64(num("comment_count")),
		Shares:      int64(num("repost_count")),
		Duration:    num("duration"),
		UploadDate:  str("upload_date"),
		Thumbnail:   str("thumbnail"),
		Music: models.AudioInfo{
			Title:  str("track"),
			Author: str("artist"),
		},
	}
}

// DownloadLink is the relative download endpoint for a canonical post URL.
func DownloadLink(kind models.ContentType, canonicalURL string) string {
	return "/api/tiktok/download/" + string(kind) + "?url=" + url.QueryEscape(canonicalURL)
}

// ExtractHashtags returns the tags in order of appearance, duplicates kept.
func ExtractHashtags(text string) []string {
	tags := make([]string, 0)
	for _, match := range hashtagRegex.FindAllStringSubmatch(text, -1) {
		tags = append(tags, match[1])
	}
	return tags
}

// FormatDuration renders seconds as m:ss, or "00:00" when unknown.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "00:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func FormatFileSize(bytes float64) string {
	if bytes <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f MB", bytes/1024/1024)
}

// FormatUploadDate prefers upload_date (YYYYMMDD) and falls back to the Unix
// timestamp. Dates are rendered in UTC.
func FormatUploadDate(meta ytdlp.Metadata) string {
	raw, _ := meta.String("upload_date")
	timestamp, _ := meta.Number("timestamp")
	if date, ok := ParseUploadDate(raw, int64(timestamp)); ok {
		return date.Format("January 2, 2006")
	}
	return "Unknown"
}

func ParseUploadDate(uploadDate string, timestamp int64) (time.Time, bool) {
	if len(uploadDate) == 8 {
		if date, err := time.Parse("20060102", uploadDate); err == nil {
			return date, true
		}
	}
	if timestamp > 0 {
		return time.Unix(timestamp, 0).UTC(), true
	}
	return time.Time{}, false
}
