package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tokgrab/downloader"
	"tokgrab/models"
	"tokgrab/sentryhelper"
	"tokgrab/tiktok"
)

type DownloadKind string

const (
	KindVideo DownloadKind = "video"
	KindAudio DownloadKind = "audio"
	KindImage DownloadKind = "image"
)

func ParseDownloadKind(raw string) (DownloadKind, bool) {
	switch kind := DownloadKind(raw); kind {
	case KindVideo, KindAudio, KindImage:
		return kind, true
	default:
		return "", false
	}
}

// Extractor is the yt-dlp surface the downloader drives.
type Extractor interface {
	MetadataFetcher
	DownloadVideo(ctx context.Context, url, output string) error
	DownloadSlideshowVideo(ctx context.Context, url, output string) error
	DownloadAudio(ctx context.Context, url, output string) error
	DownloadBatch(ctx context.Context, listFile, outputTemplate string) error
	DownloadPlaylist(ctx context.Context, url, items, outputTemplate string) error
}

type ImageFetcher interface {
	Download(ctx context.Context, imageURL, name string) (*downloader.Image, error)
}

type Request struct {
	Kind       DownloadKind
	URL        string
	ImageIndex *int
}

// Artifact is a finished file ready to stream, plus every temp file created
// to produce it. Callers must always call Cleanup.
type Artifact struct {
	Path        string
	ContentType string
	Filename    string

	temp   []string
	logger *log.Entry
}

func (a *Artifact) own(paths ...string) {
	a.temp = append(a.temp, paths...)
}

// Cleanup removes every owned temp file. Failures are logged only.
func (a *Artifact) Cleanup() {
	if a == nil {
		return
	}
	for _, path := range a.temp {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.logger.WithError(err).Warnf("failed to delete temp file %s", path)
		}
	}
	a.temp = nil
}

type Downloader struct {
	expander  URLExpander
	extractor Extractor
	images    ImageSource
	fetcher   ImageFetcher
	tempDir   string
	logger    *log.Entry
}

func NewDownloader(expander URLExpander, extractor Extractor, images ImageSource, fetcher ImageFetcher, tempDir string) *Downloader {
	return &Downloader{
		expander:  expander,
		extractor: extractor,
		images:    images,
		fetcher:   fetcher,
		tempDir:   tempDir,
		logger:    log.WithFields(log.Fields{"module": "downloader"}),
	}
}

// Download produces the requested file for one post.
func (d *Downloader) Download(ctx context.Context, req Request) (*Artifact, error) {
	if _, ok := ParseDownloadKind(string(req.Kind)); !ok {
		return nil, validationf("invalid download type %q: use video, audio or image", req.Kind)
	}
	if req.URL == "" {
		return nil, validationf("URL is required")
	}
	if _, err := tiktok.Validate(req.URL); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := os.MkdirAll(d.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	span := sentryhelper.StartSpan(ctx, "media.download", "Download media", "kind", string(req.Kind))
	defer span.Finish()

	expanded := d.expander.Expand(ctx, req.URL)
	normalized := tiktok.Normalize(expanded)

	var (
		artifact *Artifact
		err      error
	)
	switch req.Kind {
	case KindImage:
		artifact, err = d.downloadImages(ctx, expanded, req.ImageIndex)
	case KindAudio:
		artifact, err = d.downloadAudio(ctx, normalized)
	default:
		if d.isSlideshow(ctx, expanded, normalized) {
			artifact, err = d.downloadSlideshowVideo(ctx, normalized)
		} else {
			artifact, err = d.downloadVideo(ctx, normalized)
		}
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	return artifact, nil
}

// isSlideshow checks metadata for the lone-audio-format shape. When that lookup
// fails the URL shape decides.
func (d *Downloader) isSlideshow(ctx context.Context, expanded, normalized string) bool {
	if tiktok.IsPhotoURL(expanded) {
		return true
	}
	meta, err := d.extractor.FetchMetadata(ctx, normalized)
	if err != nil {
		d.logger.WithError(err).Warn("slideshow detection failed, assuming video")
		return false
	}
	slideshow := hasOnlyAudioFormat(meta)
	d.logger.Debugf("slideshow detection: %v (formats: %d)", slideshow, len(meta.Formats()))
	return slideshow
}

func (d *Downloader) downloadVideo(ctx context.Context, url string) (*Artifact, error) {
	name, stamp := d.tempName("video", "mp4")
	artifact := d.newArtifact(name, "video/mp4", fmt.Sprintf("tiktok-video-%d.mp4", stamp))
	if err := d.extractor.DownloadVideo(ctx, url, name); err != nil {
		artifact.Cleanup()
		return nil, err
	}
	return d.checkOutput(artifact)
}

func (d *Downloader) downloadSlideshowVideo(ctx context.Context, url string) (*Artifact, error) {
	d.logger.Info("slideshow detected, downloading compiled video")
	name, stamp := d.tempName("slideshow-video", "mp4")
	artifact := d.newArtifact(name, "video/mp4", fmt.Sprintf("tiktok-slideshow-video-%d.mp4", stamp))
	if err := d.extractor.DownloadSlideshowVideo(ctx, url, name); err != nil {
		artifact.Cleanup()
		return nil, err
	}
	return d.checkOutput(artifact)
}

func (d *Downloader) downloadAudio(ctx context.Context, url string) (*Artifact, error) {
	name, stamp := d.tempName("audio", "mp3")
	artifact := d.newArtifact(name, "audio/mpeg", fmt.Sprintf("tiktok-audio-%d.mp3", stamp))
	if err := d.extractor.DownloadAudio(ctx, url, name); err != nil {
		artifact.Cleanup()
		return nil, err
	}
	return d.checkOutput(artifact)
}

func (d *Downloader) downloadImages(ctx context.Context, postURL string, index *int) (*Artifact, error) {
	images := d.images.Resolve(ctx, postURL)
	if len(images) == 0 {
		return nil, notFound("No images were found in this slideshow. Try downloading the audio instead.")
	}

	if index != nil {
		idx := *index
		if idx < 0 || idx >= len(images) {
			return nil, notFound("Image not found")
		}
		return d.downloadOneImage(ctx, images[idx], idx)
	}

	d.logger.Infof("downloading all %d images as zip", len(images))
	return d.zipImages(ctx, images)
}

func (d *Downloader) downloadOneImage(ctx context.Context, image models.SlideshowImage, idx int) (*Artifact, error) {
	base, _ := d.tempName(fmt.Sprintf("image-%d", idx), "")
	img, err := d.fetcher.Download(ctx, image.URL, filepath.Base(base))
	if err != nil {
		return nil, fmt.Errorf("downloading image %d: %w", idx+1, err)
	}

	artifact := d.newArtifact(img.Path, img.MIME, fmt.Sprintf("tiktok-slideshow-image-%d.%s", idx+1, img.Extension))
	return artifact, nil
}

func (d *Downloader) zipImages(ctx context.Context, images []models.SlideshowImage) (*Artifact, error) {
	archivePath, _ := d.tempName("slideshow", "zip")
	artifact := d.newArtifact(archivePath, "application/zip", "tiktok-slideshow-images.zip")

	prefix, _ := d.tempName("image", "")
	entries := make([]archiveEntry, 0, len(images))
	for i, image := range images {
		img, err := d.fetcher.Download(ctx, image.URL, fmt.Sprintf("%s-%d", filepath.Base(prefix), i+1))
		if err != nil {
			artifact.Cleanup()
			return nil, fmt.Errorf("downloading image %d: %w", i+1, err)
		}
		artifact.own(img.Path)
		entries = append(entries, archiveEntry{
			Path: img.Path,
			Name: fmt.Sprintf("image-%d.%s", i+1, img.Extension),
		})
	}

	if err := writeZip(archivePath, entries); err != nil {
		artifact.Cleanup()
		return nil, fmt.Errorf("creating image archive: %w", err)
	}
	d.logger.Debugf("zip created with %d images: %s", len(entries), archivePath)
	return artifact, nil
}

// NewArtifact wraps a file at path that Cleanup will delete.
func NewArtifact(path, contentType, filename string) *Artifact {
	artifact := &Artifact{
		Path:        path,
		ContentType: contentType,
		Filename:    filename,
		logger:      log.WithFields(log.Fields{"module": "downloader"}),
	}
	artifact.own(path)
	return artifact
}

func (d *Downloader) newArtifact(path, contentType, filename string) *Artifact {
	artifact := NewArtifact(path, contentType, filename)
	artifact.logger = d.logger
	return artifact
}

// checkOutput guards against yt-dlp exiting cleanly without writing a file.
func (d *Downloader) checkOutput(artifact *Artifact) (*Artifact, error) {
	if _, err := os.Stat(artifact.Path); err != nil {
		artifact.Cleanup()
		return nil, fmt.Errorf("extractor produced no output file: %w", err)
	}
	return artifact, nil
}

// tempName returns a request-unique path tiktok-<kind>-<millis>-<uuid8>[.<ext>]
// inside the temp dir, and the millisecond stamp used in it.
func (d *Downloader) tempName(kind, ext string) (string, int64) {
	stamp := time.Now().UnixMilli()
	name := fmt.Sprintf("tiktok-%s-%d-%s", kind, stamp, uuid.NewString()[:8])
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(d.tempDir, name), stamp
}
