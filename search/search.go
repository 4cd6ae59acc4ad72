// Package search implements the profile-based search, the cookie-backed
// keyword search and per-user stats.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tokgrab/media"
	"tokgrab/models"
	"tokgrab/sentryhelper"
	"tokgrab/tiktok"
	"tokgrab/ytdlp"
)

const (
	MaxQueryLength = 200
	DefaultLimit   = 15
	MaxLimit       = 20
)

type PlaylistFetcher interface {
	FetchPlaylist(ctx context.Context, url, items string) ([]ytdlp.Metadata, error)
}

type Searcher struct {
	playlists  PlaylistFetcher
	cookie     string
	apiBaseURL string
	userAgent  string
	httpClient *http.Client
	logger     *log.Entry
}

func NewSearcher(playlists PlaylistFetcher, cookie, userAgent string) *Searcher {
	return &Searcher{
		playlists:  playlists,
		cookie:     cookie,
		apiBaseURL: "https://www.tiktok.com",
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: log.WithFields(log.Fields{"module": "search"}),
	}
}

// UserSearch lists the newest videos of the @user in query. Plain keywords
// are refused: TikTok offers no keyword search without a session cookie.
func (s *Searcher) UserSearch(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, &media.ValidationError{Message: fmt.Sprintf("limit must be between 1 and %d", MaxLimit)}
	}
	if len(query) < 1 || len(query) > MaxQueryLength {
		return nil, &media.ValidationError{Message: fmt.Sprintf("query must be between 1 and %d characters", MaxQueryLength)}
	}

	term := strings.TrimSpace(query)
	if !strings.HasPrefix(term, "@") {
		return nil, &media.ValidationError{Message: "To search for videos use the @username format (e.g. @tiktok). TikTok does not offer free keyword search."}
	}
	username, err := tiktok.ParseUsername(term)
	if err != nil {
		return nil, &media.ValidationError{Message: err.Error()}
	}

	span := sentryhelper.StartSpan(ctx, "search.user", "Search videos of a user", "username", username)
	defer span.Finish()

	s.logger.Infof("searching videos of @%s (limit %d)", username, limit)

	entries, err := s.playlists.FetchPlaylist(ctx, tiktok.UserURL(username), "1:"+strconv.Itoa(limit))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("could not fetch videos of @%s, check that the user exists: %w", username, err)
	}

	results := make([]models.SearchResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, toSearchResult(entry, username))
	}

	span.Status = sentry.SpanStatusOK
	return &models.SearchResponse{
		Results:      results,
		Query:        query,
		TotalResults: len(results),
	}, nil
}

func toSearchResult(meta ytdlp.Metadata, username string) models.SearchResult {
	str := func(fallback string, keys ...string) string {
		if s, ok := meta.String(keys...); ok {
			return s
		}
		return fallback
	}
	num := func(key string) int64 {
		n, _ := meta.Number(key)
		return int64(n)
	}

	id := str("", "id")
	duration, _ := meta.Number("duration")
	uploadDate := "Unknown"
	if raw, ok := meta.String("upload_date"); ok {
		if date, ok := media.ParseUploadDate(raw, 0); ok {
			uploadDate = date.Format("Jan 2, 2006")
		}
	}

	return models.SearchResult{
		ID:          id,
		Type:        "video",
		URL:         str(tiktok.VideoURL(username, id), "webpage_url", "url"),
		Thumbnail:   str("", "thumbnail"),
		Title:       str("TikTok video", "title", "description"),
		Description: str("", "description", "title"),
		Username:    username,
		Nickname:    str(username, "uploader"),
		Views:       num("view_count"),
		Likes:       num("like_count"),
		Comments:    num("comment_count"),
		Duration:    media.FormatDuration(duration),
		UploadDate:  uploadDate,
	}
}

// UserStats derives profile stats from the user's newest item.
func (s *Searcher) UserStats(ctx context.Context, rawUsername string) (*models.UserStats, error) {
	username, err := tiktok.ParseUsername(rawUsername)
	if err != nil {
		return nil, &media.ValidationError{Message: err.Error()}
	}

	span := sentryhelper.StartSpan(ctx, "search.user_stats", "Fetch user stats", "username", username)
	defer span.Finish()

	entries, err := s.playlists.FetchPlaylist(ctx, tiktok.UserURL(username), "1")
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	if len(entries) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, &media.NotFoundError{Message: fmt.Sprintf("No videos found for @%s", username)}
	}

	latest := entries[0]
	str := func(keys ...string) string {
		v, _ := latest.String(keys...)
		return v
	}
	num := func(key string) int64 {
		n, _ := latest.Number(key)
		return int64(n)
	}

	nickname, ok := latest.String("uploader", "creator")
	if !ok {
		nickname = username
	}

	span.Status = sentry.SpanStatusOK
	return &models.UserStats{
		Username:      username,
		Nickname:      nickname,
		Verified:      latest.Bool("uploader_verified"),
		FollowerCount: num("channel_follower_count"),
		VideoCount:    num("playlist_count"),
		TotalViews:    num("view_count"),
		Bio:           str("description"),
		Avatar:        str("thumbnail"),
		LatestVideo: models.LatestVideo{
			ID:         str("id"),
			Title:      str("title", "description"),
			Views:      num("view_count"),
			Likes:      num("like_count"),
			Comments:   num("comment_count"),
			UploadDate: str("upload_date"),
		},
	}, nil
}
