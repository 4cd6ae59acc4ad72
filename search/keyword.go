package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tokgrab/config"
	"tokgrab/media"
	"tokgrab/models"
	"tokgrab/sentryhelper"
)

const MaxKeywordResults = 15

// KeywordType selects which TikTok search endpoint answers a keyword query.
type KeywordType string

const (
	KeywordVideo KeywordType = "video"
	KeywordUser  KeywordType = "user"
	KeywordLive  KeywordType = "live"
)

var keywordEndpoints = map[KeywordType]struct {
	path    string
	listKey string
}{
	KeywordVideo: {"/api/search/item/full/", "item_list"},
	KeywordUser:  {"/api/search/user/full/", "user_list"},
	KeywordLive:  {"/api/search/live/full/", "data"},
}

const cookieRemediation = "The TikTok session cookie was rejected. To refresh it: " +
	"1) open tiktok.com in a logged-in browser, " +
	"2) press F12 and go to Application > Cookies > https://www.tiktok.com, " +
	"3) copy the whole cookie string, " +
	"4) update TIKTOK_COOKIE and restart the server."

func ParseKeywordType(s string) (KeywordType, bool) {
	if s == "" {
		return KeywordVideo, true
	}
	t := KeywordType(strings.ToLower(s))
	_, ok := keywordEndpoints[t]
	return t, ok
}

// KeywordSearch queries TikTok's web search with the operator's session
// cookie. Results are passed through as TikTok returns them.
func (s *Searcher) KeywordSearch(ctx context.Context, keyword string, kind KeywordType, page int) (*models.KeywordSearchResponse, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &media.ValidationError{Message: "keyword is required"}
	}
	if len(keyword) > MaxQueryLength {
		return nil, &media.ValidationError{Message: fmt.Sprintf("keyword must be at most %d characters", MaxQueryLength)}
	}
	if kind == "" {
		kind = KeywordVideo
	}
	endpoint, ok := keywordEndpoints[kind]
	if !ok {
		return nil, &media.ValidationError{Message: "type must be one of video, user, live"}
	}
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, &media.ValidationError{Message: "page must be at least 1"}
	}

	if s.cookie == "" {
		return nil, media.UpstreamAuth("TIKTOK_COOKIE is not configured", http.StatusInternalServerError)
	}
	if len(s.cookie) < config.MinCookieLength {
		return nil, media.UpstreamAuth("TIKTOK_COOKIE looks truncated, copy the whole cookie string", http.StatusInternalServerError)
	}

	span := sentryhelper.StartSpan(ctx, "search.keyword", "Keyword search", "type", string(kind))
	defer span.Finish()

	s.logger.Infof("keyword search %q (type %s, page %d)", keyword, kind, page)

	items, err := s.fetchKeyword(ctx, endpoint.path, endpoint.listKey, keyword, page)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	if len(items) > MaxKeywordResults {
		items = items[:MaxKeywordResults]
	}

	span.Status = sentry.SpanStatusOK
	return &models.KeywordSearchResponse{
		Status:       "success",
		Keyword:      keyword,
		Type:         string(kind),
		Page:         page,
		TotalResults: len(items),
		Results:      items,
	}, nil
}

type keywordEnvelope struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

func (s *Searcher) fetchKeyword(ctx context.Context, path, listKey, keyword string, page int) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("keyword", keyword)
	query.Set("offset", strconv.Itoa((page-1)*MaxKeywordResults))
	query.Set("count", strconv.Itoa(MaxKeywordResults))
	query.Set("aid", "1988")
	query.Set("app_name", "tiktok_web")
	query.Set("device_platform", "web_pc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build keyword request")
	}
	req.Header.Set("Cookie", s.cookie)
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Referer", "https://www.tiktok.com/search?q="+url.QueryEscape(keyword))
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "keyword search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read keyword search response")
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		s.logger.Warn("keyword search: empty response, cookie is probably expired")
		return nil, media.UpstreamAuth("Empty response from TikTok. "+cookieRemediation, http.StatusBadRequest)
	}

	var env keywordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "decode keyword search response")
	}
	if env.StatusCode != 0 {
		s.logger.WithFields(log.Fields{
			"status_code": env.StatusCode,
			"status_msg":  env.StatusMsg,
		}).Warn("keyword search: cookie rejected")
		return nil, media.UpstreamAuth("Invalid cookie! "+cookieRemediation, http.StatusBadRequest)
	}

	var lists map[string]json.RawMessage
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, errors.Wrap(err, "decode keyword search results")
	}

	items := []map[string]any{}
	raw, ok := lists[listKey]
	if !ok || string(raw) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(err, "decode %s", listKey)
	}
	return items, nil
}
