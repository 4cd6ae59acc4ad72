package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// maxImageBytes caps a single slideshow image download.
const maxImageBytes = 32 << 20

// Image is a downloaded file on disk.
type Image struct {
	Path      string
	MIME      string
	Extension string
}

// ImageDownloader fetches remote images into a directory, sniffing the real
// type from the bytes rather than trusting the URL or headers.
type ImageDownloader struct {
	dir        string
	userAgent  string
	httpClient *http.Client
	attempts   uint
	logger     *log.Entry
}

func NewImageDownloader(dir, userAgent string) *ImageDownloader {
	return &ImageDownloader{
		dir:       dir,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		attempts: 3,
		logger:   log.WithFields(log.Fields{"module": "image-downloader"}),
	}
}

// Download saves imageURL as <dir>/<name>.<ext>, where ext comes from the
// detected file type. Non-image payloads are rejected.
func (d *ImageDownloader) Download(ctx context.Context, imageURL, name string) (*Image, error) {
	if !IsImageURL(imageURL) {
		return nil, errors.New("invalid image URL format")
	}

	var data []byte
	err := retry.Do(
		func() error {
			var err error
			data, err = d.fetch(ctx, imageURL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts),
		retry.Delay(300*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Debugf("retrying image download (attempt %d): %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}

	if !filetype.IsImage(data) {
		return nil, errors.New("downloaded file is not a valid image")
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to detect file type")
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create image directory")
	}
	path := filepath.Join(d.dir, fmt.Sprintf("%s.%s", name, kind.Extension))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, errors.Wrap(err, "failed to save image")
	}

	return &Image{
		Path:      path,
		MIME:      kind.MIME.Value,
		Extension: kind.Extension,
	}, nil
}

func (d *ImageDownloader) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(errors.Wrap(err, "failed to create request"))
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if parsedURL, _ := url.Parse(imageURL); parsedURL != nil {
		req.Header.Set("Referer", fmt.Sprintf("%s://%s/", parsedURL.Scheme, parsedURL.Host))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download image from %s", imageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download failed with status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image data")
	}
	return data, nil
}

// IsImageURL reports whether raw is an absolute http(s) URL.
func IsImageURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	parsed, err := url.Parse(raw)
	return err == nil && parsed.Host != ""
}
