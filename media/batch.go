package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tokgrab/models"
	"tokgrab/sentryhelper"
	"tokgrab/tiktok"
)

const (
	MaxBatchDownloadURLs = 20
	MaxBatchMetadataURLs = 50

	// latestItems is the playlist selection for a user's newest videos.
	latestItems = "1-5"
)

// MetadataBatch fetches metadata for every URL in order, one extractor call
// per URL. A failing URL is recorded and the loop carries on.
func (s *Service) MetadataBatch(ctx context.Context, urls []string) (*models.BatchResult, error) {
	if len(urls) == 0 {
		return nil, validationf("provide an array of URLs")
	}
	if len(urls) > MaxBatchMetadataURLs {
		return nil, validationf("maximum %d URLs per request", MaxBatchMetadataURLs)
	}

	span := sentryhelper.StartSpan(ctx, "media.metadata_batch", "Fetch metadata for a batch")
	span.SetData("count", len(urls))
	defer span.Finish()

	s.logger.Infof("processing metadata batch of %d URLs", len(urls))

	result := &models.BatchResult{
		Total:   len(urls),
		Results: make([]models.BatchItem, 0, len(urls)),
	}
	for _, raw := range urls {
		item := s.summarize(ctx, raw)
		if item.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, item)
	}

	span.Status = sentry.SpanStatusOK
	return result, nil
}

func (s *Service) summarize(ctx context.Context, raw string) models.BatchItem {
	if _, err := tiktok.Validate(raw); err != nil {
		return models.BatchItem{URL: raw, Error: err.Error()}
	}

	normalized := tiktok.Normalize(s.expander.Expand(ctx, raw))
	meta, err := s.fetcher.FetchMetadata(ctx, normalized)
	if err != nil {
		message := "failed to fetch metadata"
		var extractionErr *ExtractionError
		if !errors.As(err, &extractionErr) {
			message = err.Error()
		}
		return models.BatchItem{URL: raw, Error: message}
	}

	summary := Summarize(meta)
	return models.BatchItem{Success: true, URL: raw, Data: &summary}
}

// DownloadBatch downloads every URL with a single extractor invocation and
// zips the results. One systemic failure aborts the whole batch; yt-dlp skips
// individual bad items on its own only when it exits cleanly.
func (d *Downloader) DownloadBatch(ctx context.Context, urls []string) (*Artifact, error) {
	if len(urls) == 0 {
		return nil, validationf("provide an array of URLs")
	}
	if len(urls) > MaxBatchDownloadURLs {
		return nil, validationf("maximum %d URLs per request", MaxBatchDownloadURLs)
	}
	for i, raw := range urls {
		if _, err := tiktok.Validate(raw); err != nil {
			return nil, validationf("URL %d is not a valid TikTok URL", i+1)
		}
	}
	if err := os.MkdirAll(d.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	span := sentryhelper.StartSpan(ctx, "media.download_batch", "Download a batch of videos")
	span.SetData("count", len(urls))
	defer span.Finish()

	prefix := batchPrefix()
	d.logger.Infof("batch %s: downloading %d URLs", prefix, len(urls))

	canonical := make([]string, 0, len(urls))
	for _, raw := range urls {
		canonical = append(canonical, tiktok.Normalize(d.expander.Expand(ctx, raw)))
	}

	listFile := filepath.Join(d.tempDir, "urls-"+prefix+".txt")
	if err := os.WriteFile(listFile, []byte(strings.Join(canonical, "\n")), 0644); err != nil {
		return nil, fmt.Errorf("write batch list: %w", err)
	}

	archivePath := filepath.Join(d.tempDir, "tiktok-batch-"+prefix+".zip")
	artifact := d.newArtifact(archivePath, "application/zip", fmt.Sprintf("tiktok-batch-%d-videos.zip", len(urls)))
	artifact.own(listFile)

	template := filepath.Join(d.tempDir, "batch-"+prefix+"-%(autonumber)s.mp4")
	if err := d.extractor.DownloadBatch(ctx, listFile, template); err != nil {
		d.removeMatching("batch-" + prefix + "-*")
		artifact.Cleanup()
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	if err := d.zipMatching(artifact, "batch-"+prefix+"-*.mp4"); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	return artifact, nil
}

// DownloadLatest zips the five most recent videos of a user.
func (d *Downloader) DownloadLatest(ctx context.Context, rawUsername string) (*Artifact, error) {
	username, err := tiktok.ParseUsername(rawUsername)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := os.MkdirAll(d.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	span := sentryhelper.StartSpan(ctx, "media.download_latest", "Download latest videos of a user", "username", username)
	defer span.Finish()

	prefix := username + "-" + batchPrefix()
	d.logger.WithFields(log.Fields{"username": username}).Info("downloading latest videos")

	archivePath := filepath.Join(d.tempDir, "tiktok-latest-"+prefix+".zip")
	artifact := d.newArtifact(archivePath, "application/zip", fmt.Sprintf("tiktok-%s-latest-5.zip", username))

	template := filepath.Join(d.tempDir, prefix+"-%(autonumber)s.mp4")
	if err := d.extractor.DownloadPlaylist(ctx, tiktok.UserURL(username), latestItems, template); err != nil {
		d.removeMatching(prefix + "-*")
		artifact.Cleanup()
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	if err := d.zipMatching(artifact, prefix+"-*.mp4"); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	return artifact, nil
}

// zipMatching archives every temp file matching pattern into artifact.Path as
// video-<n>.mp4. Matched files become owned by the artifact.
func (d *Downloader) zipMatching(artifact *Artifact, pattern string) error {
	files, err := filepath.Glob(filepath.Join(d.tempDir, pattern))
	if err != nil {
		artifact.Cleanup()
		return fmt.Errorf("listing downloaded files: %w", err)
	}
	// autonumber is zero padded, so lexical order is download order
	sort.Strings(files)
	artifact.own(files...)

	if len(files) == 0 {
		artifact.Cleanup()
		return notFound("No videos could be downloaded")
	}

	entries := make([]archiveEntry, 0, len(files))
	for i, file := range files {
		entries = append(entries, archiveEntry{Path: file, Name: fmt.Sprintf("video-%d.mp4", i+1)})
	}

	d.logger.Debugf("adding %d videos to %s", len(entries), filepath.Base(artifact.Path))
	if err := writeZip(artifact.Path, entries); err != nil {
		artifact.Cleanup()
		return fmt.Errorf("creating video archive: %w", err)
	}
	return nil
}

// removeMatching deletes partial outputs after a failed invocation.
func (d *Downloader) removeMatching(pattern string) {
	files, _ := filepath.Glob(filepath.Join(d.tempDir, pattern))
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			d.logger.WithError(err).Warnf("failed to delete partial file %s", file)
		}
	}
}

func batchPrefix() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
