package media

import (
	"context"
	"errors"
	"fmt"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"tokgrab/models"
	"tokgrab/sentryhelper"
	"tokgrab/tiktok"
	"tokgrab/tikwm"
	"tokgrab/ytdlp"
)

// musicLookupCount is how many videos are requested for a sound; only the
// first is used.
const musicLookupCount = 5

type URLExpander interface {
	Expand(ctx context.Context, raw string) string
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (ytdlp.Metadata, error)
}

type MusicLookup interface {
	MusicPosts(ctx context.Context, musicID string, count int) ([]tikwm.Post, error)
}

type ImageSource interface {
	Resolve(ctx context.Context, postURL string) []models.SlideshowImage
}

// Service answers metadata questions: single-post info and metadata batches.
type Service struct {
	expander URLExpander
	fetcher  MetadataFetcher
	music    MusicLookup
	images   ImageSource
	logger   *log.Entry
}

func NewService(expander URLExpander, fetcher MetadataFetcher, music MusicLookup, images ImageSource) *Service {
	return &Service{
		expander: expander,
		fetcher:  fetcher,
		music:    music,
		images:   images,
		logger:   log.WithFields(log.Fields{"module": "media-service"}),
	}
}

// Info runs the full pipeline for one URL: validate, expand, substitute sound
// pages with a video using that sound, fetch, classify, resolve images and
// assemble.
func (s *Service) Info(ctx context.Context, rawURL string) (*models.NormalizedMedia, error) {
	span := sentryhelper.StartSpan(ctx, "media.info", "Build media info", "url", rawURL)
	defer span.Finish()

	if _, err := tiktok.Validate(rawURL); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	expanded := s.expander.Expand(ctx, rawURL)

	var canonical string
	if tiktok.IsMusicURL(expanded) {
		videoURL, err := s.resolveMusicURL(ctx, expanded)
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
			return nil, err
		}
		canonical = videoURL
	} else {
		canonical = tiktok.Normalize(expanded)
	}

	meta, err := s.fetcher.FetchMetadata(ctx, canonical)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	contentType := Classify(expanded, meta)

	var images []models.SlideshowImage
	if contentType == models.ContentSlideshow {
		images = s.images.Resolve(ctx, expanded)
		s.logger.Debugf("detected slideshow with %d images", len(images))
	}

	result := Assemble(canonical, meta, contentType, images)

	s.logger.WithFields(log.Fields{
		"content_type": contentType,
		"creator":      result.Creator.Username,
		"views":        result.Stats.Views,
	}).Info("media info extracted")

	span.Status = sentry.SpanStatusOK
	return &result, nil
}

// resolveMusicURL swaps a sound page for the first video that uses the sound.
// yt-dlp cannot treat a sound page as a content item.
func (s *Service) resolveMusicURL(ctx context.Context, musicURL string) (string, error) {
	musicID, err := tiktok.ExtractMusicID(musicURL)
	if err != nil {
		return "", &InvalidRequestError{Message: "Could not extract the audio ID from the URL. Make sure the URL is valid."}
	}

	posts, err := s.music.MusicPosts(ctx, musicID, musicLookupCount)
	var apiErr *tikwm.APIError
	switch {
	case errors.Is(err, tikwm.ErrNoResults), errors.As(err, &apiErr):
		s.logger.WithError(err).Infof("no videos for sound %s", musicID)
		return "", notFound("No videos were found using this audio. Try a video URL directly.")
	case err != nil:
		s.logger.WithError(err).Errorf("sound lookup failed for %s", musicID)
		sentryhelper.CaptureException(ctx, err)
		return "", fmt.Errorf("looking up videos for sound %s: %w", musicID, err)
	}

	first := posts[0]
	videoURL := tiktok.VideoURL(first.Author.UniqueID, first.PostID())
	s.logger.Debugf("sound %s resolved to %s", musicID, videoURL)
	sentryhelper.AddBreadcrumb(ctx, "media", "sound page replaced by "+videoURL)

	return tiktok.Normalize(videoURL), nil
}
