package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tokgrab/sentryhelper"
)

var errNotAnObject = errors.New("metadata is not a JSON object")

// ExtractionError reports a failed yt-dlp invocation. Stderr is kept for logs
// and is never shown to API callers.
type ExtractionError struct {
	Op       string
	URL      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("yt-dlp %s failed for %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("yt-dlp %s failed for %s (exit %d)", e.Op, e.URL, e.ExitCode)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Client struct {
	runner          Runner
	metadataTimeout time.Duration
	downloadTimeout time.Duration
	logger          *log.Entry
}

// NewClient builds a client over runner. A zero timeout disables the
// corresponding deadline.
func NewClient(runner Runner, metadataTimeout, downloadTimeout time.Duration) *Client {
	return &Client{
		runner:          runner,
		metadataTimeout: metadataTimeout,
		downloadTimeout: downloadTimeout,
		logger:          log.WithFields(log.Fields{"module": "ytdlp"}),
	}
}

// FetchMetadata dumps the metadata of a single URL without downloading it.
func (c *Client) FetchMetadata(ctx context.Context, url string) (Metadata, error) {
	span := sentryhelper.StartSpan(ctx, "ytdlp.metadata", "Fetch metadata via yt-dlp", "url", url)
	defer span.Finish()

	result, err := c.run(ctx, c.metadataTimeout, "metadata", url, "--dump-json", "--skip-download", url)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	stdout := bytes.TrimSpace(result.Stdout)
	if len(stdout) == 0 {
		span.Status = sentry.SpanStatusInternalError
		return nil, c.fail(ctx, &ExtractionError{Op: "metadata", URL: url, Stderr: string(result.Stderr), Err: errors.New("empty output")})
	}

	meta, err := ParseMetadata(stdout)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, c.fail(ctx, &ExtractionError{Op: "metadata", URL: url, Stderr: string(result.Stderr), Err: fmt.Errorf("invalid JSON: %w", err)})
	}

	span.Status = sentry.SpanStatusOK
	return meta, nil
}

// FetchPlaylist dumps metadata for the selected items of a playlist-like page
// (a user profile). yt-dlp prints one JSON document per line; lines that do
// not parse are skipped.
func (c *Client) FetchPlaylist(ctx context.Context, url, items string) ([]Metadata, error) {
	span := sentryhelper.StartSpan(ctx, "ytdlp.playlist", "Fetch playlist metadata via yt-dlp", "url", url, "items", items)
	defer span.Finish()

	result, err := c.run(ctx, c.metadataTimeout, "playlist", url,
		"--playlist-items", items,
		"--dump-json",
		"--skip-download",
		url)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	entries := make([]Metadata, 0)
	scanner := bufio.NewScanner(bytes.NewReader(result.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		meta, err := ParseMetadata(line)
		if err != nil {
			c.logger.Debugf("skipping unparsable playlist line: %v", err)
			continue
		}
		entries = append(entries, meta)
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("entries", len(entries))
	return entries, nil
}

func (c *Client) DownloadVideo(ctx context.Context, url, output string) error {
	return c.download(ctx, "download_video", url,
		"--format", "best[ext=mp4]",
		"--force-overwrites",
		"-o", output,
		url)
}

// DownloadSlideshowVideo renders a slideshow post into a single mp4.
func (c *Client) DownloadSlideshowVideo(ctx context.Context, url, output string) error {
	return c.download(ctx, "download_slideshow", url,
		"--format", "best",
		"--force-overwrites",
		"--merge-output-format", "mp4",
		"-o", output,
		url)
}

func (c *Client) DownloadAudio(ctx context.Context, url, output string) error {
	return c.download(ctx, "download_audio", url,
		"--extract-audio",
		"--audio-format", "mp3",
		"--force-overwrites",
		"-o", output,
		url)
}

// DownloadBatch downloads every URL listed in listFile with one invocation.
// outputTemplate should contain %(autonumber)s so files do not collide.
func (c *Client) DownloadBatch(ctx context.Context, listFile, outputTemplate string) error {
	return c.download(ctx, "download_batch", listFile,
		"--batch-file", listFile,
		"--format", "best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--force-overwrites",
		"-o", outputTemplate)
}

// DownloadPlaylist downloads the selected items of a profile page.
func (c *Client) DownloadPlaylist(ctx context.Context, url, items, outputTemplate string) error {
	return c.download(ctx, "download_playlist", url,
		"--playlist-items", items,
		"--format", "best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--force-overwrites",
		"-o", outputTemplate,
		url)
}

func (c *Client) download(ctx context.Context, op, target string, args ...string) error {
	span := sentryhelper.StartSpan(ctx, "ytdlp."+op, "Download via yt-dlp", "target", target)
	defer span.Finish()

	start := time.Now()
	if _, err := c.run(ctx, c.downloadTimeout, op, target, args...); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return err
	}

	span.Status = sentry.SpanStatusOK
	c.logger.WithFields(log.Fields{"op": op, "elapsed": time.Since(start).String()}).Debugf("finished %s", target)
	return nil
}

// run executes yt-dlp and turns start failures, deadlines and non-zero exits
// into an ExtractionError.
func (c *Client) run(ctx context.Context, timeout time.Duration, op, target string, args ...string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.logger.Tracef("yt-dlp %s", strings.Join(args, " "))

	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		extractionErr := &ExtractionError{Op: op, URL: target, ExitCode: -1, Err: err}
		if result != nil {
			extractionErr.Stderr = string(result.Stderr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			extractionErr.Err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, c.fail(ctx, extractionErr)
	}
	if result.ExitCode != 0 {
		return nil, c.fail(ctx, &ExtractionError{Op: op, URL: target, ExitCode: result.ExitCode, Stderr: string(result.Stderr)})
	}
	return result, nil
}

func (c *Client) fail(ctx context.Context, err *ExtractionError) error {
	c.logger.WithFields(log.Fields{
		"op":     err.Op,
		"url":    err.URL,
		"exit":   err.ExitCode,
		"stderr": strings.TrimSpace(err.Stderr),
	}).Error("yt-dlp command failed")
	if !errors.Is(err, context.Canceled) {
		sentryhelper.CaptureException(ctx, err)
	}
	return err
}
