package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tokgrab/downloader"
	"tokgrab/models"
	"tokgrab/tikwm"
	"tokgrab/ytdlp"
)

type fakeExpander struct {
	targets map[string]string
}

func (f *fakeExpander) Expand(_ context.Context, raw string) string {
	if target, ok := f.targets[raw]; ok {
		return target
	}
	return raw
}

type fakeFetcher struct {
	mu    sync.Mutex
	meta  map[string]ytdlp.Metadata
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, url string) (ytdlp.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	if meta, ok := f.meta[url]; ok {
		return meta, nil
	}
	return ytdlp.Metadata{"id": "default"}, nil
}

type fakeMusic struct {
	posts []tikwm.Post
	err   error
	asked []string
}

func (f *fakeMusic) MusicPosts(_ context.Context, musicID string, count int) ([]tikwm.Post, error) {
	f.asked = append(f.asked, fmt.Sprintf("%s:%d", musicID, count))
	return f.posts, f.err
}

type fakeImages struct {
	images []models.SlideshowImage
	asked  []string
}

func (f *fakeImages) Resolve(_ context.Context, postURL string) []models.SlideshowImage {
	f.asked = append(f.asked, postURL)
	return f.images
}

// fakeExtractor writes placeholder files wherever yt-dlp would.
type fakeExtractor struct {
	fakeFetcher
	batchOutputs int
	err          error
	calls        []string
}

func (f *fakeExtractor) write(path, content string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (f *fakeExtractor) DownloadVideo(_ context.Context, url, output string) error {
	f.calls = append(f.calls, "video:"+url)
	return f.write(output, "video "+url)
}

func (f *fakeExtractor) DownloadSlideshowVideo(_ context.Context, url, output string) error {
	f.calls = append(f.calls, "slideshow:"+url)
	return f.write(output, "slideshow "+url)
}

func (f *fakeExtractor) DownloadAudio(_ context.Context, url, output string) error {
	f.calls = append(f.calls, "audio:"+url)
	return f.write(output, "audio "+url)
}

func (f *fakeExtractor) DownloadBatch(_ context.Context, listFile, template string) error {
	f.calls = append(f.calls, "batch:"+listFile)
	data, err := os.ReadFile(listFile)
	if err != nil {
		return err
	}
	return f.writeNumbered(template, strings.Split(string(data), "\n"))
}

func (f *fakeExtractor) DownloadPlaylist(_ context.Context, url, items, template string) error {
	f.calls = append(f.calls, "playlist:"+url+":"+items)
	contents := make([]string, f.batchOutputs)
	for i := range contents {
		contents[i] = fmt.Sprintf("%s #%d", url, i+1)
	}
	return f.writeNumbered(template, contents)
}

func (f *fakeExtractor) writeNumbered(template string, contents []string) error {
	if f.err != nil {
		return f.err
	}
	for i, content := range contents {
		path := strings.Replace(template, "%(autonumber)s", fmt.Sprintf("%05d", i+1), 1)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// fakeImageFetcher stores the URL as the file body so archive order can be checked.
type fakeImageFetcher struct {
	dir  string
	fail map[string]bool
}

func (f *fakeImageFetcher) Download(_ context.Context, imageURL, name string) (*downloader.Image, error) {
	if f.fail[imageURL] {
		return nil, errors.New("boom")
	}
	path := filepath.Join(f.dir, name+".jpg")
	if err := os.WriteFile(path, []byte(imageURL), 0644); err != nil {
		return nil, err
	}
	return &downloader.Image{Path: path, MIME: "image/jpeg", Extension: "jpg"}, nil
}
