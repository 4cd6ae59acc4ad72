package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokgrab/models"
	"tokgrab/ytdlp"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"hello #Foo_1 world #bar", []string{"Foo_1", "bar"}},
		{"#fyp #fyp #dance", []string{"fyp", "fyp", "dance"}},
		{"canción #música #日本", []string{"música", "日本"}},
		{"no tags here", []string{}},
		{"", []string{}},
		{"trailing # and #ok!", []string{"ok"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractHashtags(tt.text), tt.text)
	}
}

func TestFormatUploadDate(t *testing.T) {
	tests := []struct {
		name string
		meta ytdlp.Metadata
		want string
	}{
		{"date string", ytdlp.Metadata{"upload_date": "20230615"}, "June 15, 2023"},
		{"timestamp only", ytdlp.Metadata{"timestamp": float64(1686787200)}, "June 15, 2023"},
		{"date string wins", ytdlp.Metadata{"upload_date": "20230615", "timestamp": float64(0x7fffffff)}, "June 15, 2023"},
		{"invalid date falls back to timestamp", ytdlp.Metadata{"upload_date": "20231345", "timestamp": float64(1686787200)}, "June 15, 2023"},
		{"neither", ytdlp.Metadata{}, "Unknown"},
		{"garbage", ytdlp.Metadata{"upload_date": "yesterday"}, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUploadDate(tt.meta))
		})
	}
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "0:07", FormatDuration(7.9))
	assert.Equal(t, "2:05", FormatDuration(125))
	assert.Equal(t, "N/A", FormatFileSize(0))
	assert.Equal(t, "1.50 MB", FormatFileSize(1.5*1024*1024))
}

func TestAssembleFallbacks(t *testing.T) {
	got := Assemble("https://www.tiktok.com/@u/video/1", ytdlp.Metadata{}, models.ContentVideo, nil)

	assert.Equal(t, "TikTok Content", got.Title)
	assert.Equal(t, "No description available", got.Description)
	assert.Equal(t, placeholderThumbnail, got.Thumbnail)
	assert.Equal(t, "Unknown", got.Creator.Username)
	assert.Equal(t, "TikTok User", got.Creator.Nickname)
	assert.Equal(t, "", got.Creator.Avatar)
	assert.Equal(t, models.Stats{}, got.Stats)
	assert.Equal(t, "Original Sound", got.Audio.Title)
	assert.Equal(t, "Unknown Artist", got.Audio.Author)
	assert.Equal(t, []string{}, got.Hashtags)
	assert.Equal(t, "Unknown", got.UploadDate)
	assert.Equal(t, "unknown", got.VideoID)
	assert.Nil(t, got.Images)

	meta := got.Metadata
	assert.Equal(t, "00:00", meta.Duration)
	assert.Equal(t, "N/A", meta.VideoSize)
	assert.Equal(t, "N/A", meta.AudioSize)
	assert.Equal(t, "1080x1920", meta.Resolution)
	assert.Equal(t, "MP4", meta.Format)
	assert.Equal(t, "H.264", meta.Codec)
	assert.Equal(t, float64(30), meta.FPS)
	assert.Equal(t, "N/A", meta.Bitrate)
	assert.Equal(t, "AAC", meta.AudioCodec)
	assert.Equal(t, 2, meta.AudioChannels)
	assert.Equal(t, "44.1 kHz", meta.AudioSampleRate)

	assert.Equal(t, "/api/tiktok/download/video?url=https%3A%2F%2Fwww.tiktok.com%2F%40u%2Fvideo%2F1", got.VideoURL)
	assert.Equal(t, "/api/tiktok/download/audio?url=https%3A%2F%2Fwww.tiktok.com%2F%40u%2Fvideo%2F1", got.AudioURL)
}

func TestAssembleFullDocument(t *testing.T) {
	meta := ytdlp.Metadata{
		"id":                "7234",
		"title":             "",
		"description":       "dance time #fyp #dance",
		"thumbnail":         "",
		"duration":          float64(65),
		"filesize_approx":   float64(10 * 1024 * 1024),
		"width":             float64(720),
		"height":            float64(1280),
		"ext":               "mp4",
		"vcodec":            "h264",
		"tbr":               float64(1234.6),
		"asr":               float64(48000),
		"uploader":          "Dancer",
		"uploader_id":       "dancer01",
		"uploader_url":      "https://www.tiktok.com/@dancer01",
		"uploader_verified": true,
		"view_count":        float64(1000),
		"like_count":        float64(50),
		"repost_count":      float64(3),
		"track":             "Song",
		"upload_date":       "20240101",
	}
	images := []models.SlideshowImage{{URL: "https://img/1.jpg", Width: 1440, Height: 1440}}

	got := Assemble("https://www.tiktok.com/@dancer01/video/7234", meta, models.ContentSlideshow, images)

	assert.Equal(t, "dance time #fyp #dance", got.Title)
	assert.Equal(t, "https://img/1.jpg", got.Thumbnail)
	assert.Equal(t, images, got.Images)
	assert.Equal(t, "1:05", got.Metadata.Duration)
	assert.Equal(t, "10.00 MB", got.Metadata.VideoSize)
	assert.Equal(t, "1.00 MB", got.Metadata.AudioSize)
	assert.Equal(t, "720x1280", got.Metadata.Resolution)
	assert.Equal(t, "1235 kbps", got.Metadata.Bitrate)
	assert.Equal(t, "48.0 kHz", got.Metadata.AudioSampleRate)
	assert.Equal(t, models.Creator{Username: "dancer01", Nickname: "Dancer", Avatar: "https://www.tiktok.com/@dancer01", Verified: true}, got.Creator)
	assert.Equal(t, models.Stats{Views: 1000, Likes: 50, Shares: 3}, got.Stats)
	assert.Equal(t, models.AudioInfo{Title: "Song", Author: "Dancer"}, got.Audio)
	assert.Equal(t, []string{"fyp", "dance"}, got.Hashtags)
	assert.Equal(t, "January 1, 2024", got.UploadDate)
	assert.Equal(t, "7234", got.VideoID)
}
