package media

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tokgrab/models"
	"tokgrab/sentryhelper"
	"tokgrab/tiktok"
	"tokgrab/tikwm"
)

// apiImageSize is what the API tier reports for every image; tikwm does not
// return per-image geometry.
const apiImageSize = 1440

// PostLookup is the part of the tikwm client the resolver needs.
type PostLookup interface {
	GetPost(ctx context.Context, postURL string) (*tikwm.Post, error)
}

// ImageResolver finds the ordered image list of a slideshow post.
type ImageResolver struct {
	api        PostLookup
	httpClient *http.Client
	userAgent  string
	logger     *log.Entry
}

func NewImageResolver(api PostLookup, userAgent string) *ImageResolver {
	return &ImageResolver{
		api: api,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		logger:    log.WithFields(log.Fields{"module": "image-resolver"}),
	}
}

// Resolve never fails: an empty result means no images could be found. The
// page scrape only runs when the API errors or returns nothing.
func (r *ImageResolver) Resolve(ctx context.Context, postURL string) []models.SlideshowImage {
	span := sentryhelper.StartSpan(ctx, "media.resolve_images", "Resolve slideshow images", "url", postURL)
	defer span.Finish()

	normalized := tiktok.Normalize(postURL)

	if images, err := r.fromAPI(ctx, normalized); err != nil {
		r.logger.WithError(err).Debug("image API failed, trying page scrape")
	} else if len(images) > 0 {
		r.logger.Debugf("found %d images via API", len(images))
		span.SetTag("tier", "api")
		return images
	}

	images, err := r.fromPage(ctx, normalized)
	if err != nil {
		r.logger.WithError(err).Warn("page scrape failed")
		span.Status = sentry.SpanStatusNotFound
		return []models.SlideshowImage{}
	}
	if len(images) == 0 {
		r.logger.Info("no slideshow images found")
		sentryhelper.CaptureMessage(ctx, "no slideshow images found for "+normalized)
		span.Status = sentry.SpanStatusNotFound
		return []models.SlideshowImage{}
	}

	span.SetTag("tier", "page")
	return images
}

func (r *ImageResolver) fromAPI(ctx context.Context, postURL string) ([]models.SlideshowImage, error) {
	if r.api == nil {
		return nil, nil
	}
	post, err := r.api.GetPost(ctx, postURL)
	if err != nil {
		return nil, err
	}

	urls := post.ImageURLs()
	images := make([]models.SlideshowImage, 0, len(urls))
	for _, url := range urls {
		images = append(images, models.SlideshowImage{URL: url, Width: apiImageSize, Height: apiImageSize})
	}
	return images, nil
}

func (r *ImageResolver) fromPage(ctx context.Context, postURL string) ([]models.SlideshowImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.tiktok.com/")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	result, ok, err := ExtractPageImages(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if !ok {
		return nil, nil
	}
	r.logger.Debugf("found %d images via %s (%s)", len(result.Images), result.Variant, result.Path)
	return result.Images, nil
}
