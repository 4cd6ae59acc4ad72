package media

import (
	"tokgrab/models"
	"tokgrab/tiktok"
	"tokgrab/ytdlp"
)

// Classify decides the content type from the URL shape and the metadata
// document. yt-dlp exposes a slideshow as a lone "audio" format since the post
// has no video track, so a slideshow is recognised by what is missing.
func Classify(originalURL string, meta ytdlp.Metadata) models.ContentType {
	if tiktok.IsMusicURL(originalURL) {
		return models.ContentAudio
	}
	if tiktok.IsPhotoURL(originalURL) || hasOnlyAudioFormat(meta) {
		return models.ContentSlideshow
	}
	if kind, _ := meta.String("_type"); kind == "audio" {
		return models.ContentAudio
	}
	return models.ContentVideo
}

func hasOnlyAudioFormat(meta ytdlp.Metadata) bool {
	formats := meta.Formats()
	return len(formats) == 1 && formats[0].ID == "audio"
}
