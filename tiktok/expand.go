package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"tokgrab/sentryhelper"
)

// Expander resolves vm.tiktok.com / vt.tiktok.com share links to the page they
// redirect to. Only Location headers are followed; bodies are never read.
type Expander struct {
	httpClient *http.Client
	userAgent  string
	maxHops    int
	logger     *log.Entry
}

func NewExpander(userAgent string, maxHops int) *Expander {
	if maxHops <= 0 {
		maxHops = 10
	}
	return &Expander{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		maxHops:   maxHops,
		logger:    log.WithFields(log.Fields{"module": "tiktok-expander"}),
	}
}

// Expand returns the final destination of a short link. Any other URL is
// returned untouched. Expansion is best-effort: on failure the input comes
// back unchanged and later steps report a clearer error.
func (e *Expander) Expand(ctx context.Context, raw string) string {
	if !IsShortLink(raw) {
		return raw
	}

	span := sentryhelper.StartSpan(ctx, "tiktok.expand", "Resolve short link redirects")
	defer span.Finish()

	expanded, err := e.follow(ctx, raw)
	if err != nil {
		e.logger.WithError(err).Warnf("failed to expand short URL %s", raw)
		return raw
	}

	e.logger.Debugf("expanded short URL: %s -> %s", raw, expanded)
	return expanded
}

// follow walks Location headers until the URL leaves the short-link hosts.
// Once at least one hop has resolved, a failure on a later hop returns the
// last resolved URL instead of an error.
func (e *Expander) follow(ctx context.Context, raw string) (string, error) {
	current := raw
	for i := 0; i < e.maxHops; i++ {
		next, err := e.hop(ctx, current)
		if err != nil {
			if current != raw {
				e.logger.WithError(err).Debugf("stopping at %s", current)
				return current, nil
			}
			return "", err
		}
		if next == "" {
			return current, nil
		}
		current = next
		if !IsShortLink(current) {
			return current, nil
		}
	}
	return "", fmt.Errorf("stopped after %d redirects", e.maxHops)
}

// hop requests target once and returns the absolute redirect target, or ""
// when the response is not a redirect.
func (e *Expander) hop(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", nil
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", nil
	}

	base, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	next, err := base.Parse(location)
	if err != nil {
		return "", fmt.Errorf("bad Location header %q: %w", location, err)
	}
	return next.String(), nil
}
