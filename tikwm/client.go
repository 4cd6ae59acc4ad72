// Package tikwm is a small client for the tikwm.com public TikTok API, used
// for slideshow image lists and "videos using this sound" lookups.
package tikwm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tokgrab/sentryhelper"
)

// APIError is returned when tikwm answers with a non-zero code.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tikwm error %d: %s", e.Code, e.Msg)
}

// ErrNoResults means the call succeeded but returned nothing usable.
var ErrNoResults = errors.New("tikwm returned no results")

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	attempts   uint
	logger     *log.Entry
}

func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		attempts: 3,
		logger:   log.WithFields(log.Fields{"module": "tikwm"}),
	}
}

// GetPost looks up a single post by its public URL.
func (c *Client) GetPost(ctx context.Context, postURL string) (*Post, error) {
	span := sentryhelper.StartSpan(ctx, "tikwm.get_post", "Fetch post from tikwm", "url", postURL)
	defer span.Finish()

	params := url.Values{}
	params.Set("url", postURL)
	params.Set("hd", "1")

	var post Post
	if err := c.get(ctx, "/api/", params, &post); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	return &post, nil
}

// MusicPosts lists up to count posts that use the given sound.
func (c *Client) MusicPosts(ctx context.Context, musicID string, count int) ([]Post, error) {
	span := sentryhelper.StartSpan(ctx, "tikwm.music_posts", "Fetch posts using a sound", "music_id", musicID)
	defer span.Finish()

	params := url.Values{}
	params.Set("music_id", musicID)
	params.Set("count", strconv.Itoa(count))
	params.Set("cursor", "0")

	var feed musicFeed
	if err := c.get(ctx, "/api/music/posts", params, &feed); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	if len(feed.Videos) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, ErrNoResults
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("results_count", len(feed.Videos))
	return feed.Videos, nil
}

// get performs the request and decodes data into out. Transport errors and
// 5xx/429 answers are retried; an APIError is final.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			var err error
			body, err = c.fetch(ctx, endpoint)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debugf("retrying %s (attempt %d): %v", path, n+1, err)
		}),
	)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode tikwm response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrNoResults
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode tikwm data: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("tikwm returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(fmt.Errorf("tikwm returned status %d", resp.StatusCode))
	}
	return body, nil
}
