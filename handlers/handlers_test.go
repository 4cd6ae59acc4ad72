package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokgrab/media"
	"tokgrab/models"
	"tokgrab/search"
	"tokgrab/ytdlp"
)

type fakeMedia struct {
	info    *models.NormalizedMedia
	batch   *models.BatchResult
	err     error
	gotURLs []string
}

func (f *fakeMedia) Info(_ context.Context, rawURL string) (*models.NormalizedMedia, error) {
	f.gotURLs = append(f.gotURLs, rawURL)
	return f.info, f.err
}

func (f *fakeMedia) MetadataBatch(_ context.Context, urls []string) (*models.BatchResult, error) {
	f.gotURLs = urls
	return f.batch, f.err
}

type fakeDownloader struct {
	dir      string
	err      error
	requests []media.Request
	artifact *media.Artifact
}

func (f *fakeDownloader) make(name, contentType, body string) (*media.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return nil, err
	}
	f.artifact = media.NewArtifact(path, contentType, name)
	return f.artifact, nil
}

func (f *fakeDownloader) Download(_ context.Context, req media.Request) (*media.Artifact, error) {
	f.requests = append(f.requests, req)
	return f.make("tiktok-video-1.mp4", "video/mp4", "mp4 bytes")
}

func (f *fakeDownloader) DownloadBatch(_ context.Context, urls []string) (*media.Artifact, error) {
	return f.make("tiktok-batch-2-videos.zip", "application/zip", "zip bytes")
}

func (f *fakeDownloader) DownloadLatest(_ context.Context, username string) (*media.Artifact, error) {
	return f.make("tiktok-"+username+"-latest-5.zip", "application/zip", "zip bytes")
}

type fakeSearch struct {
	err      error
	kind     search.KeywordType
	username string
}

func (f *fakeSearch) UserSearch(_ context.Context, query string, limit int) (*models.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResponse{Query: query, Results: []models.SearchResult{}}, nil
}

func (f *fakeSearch) KeywordSearch(_ context.Context, keyword string, kind search.KeywordType, page int) (*models.KeywordSearchResponse, error) {
	f.kind = kind
	if f.err != nil {
		return nil, f.err
	}
	return &models.KeywordSearchResponse{Status: "success", Keyword: keyword, Type: string(kind), Page: page}, nil
}

func (f *fakeSearch) UserStats(_ context.Context, username string) (*models.UserStats, error) {
	f.username = username
	if f.err != nil {
		return nil, f.err
	}
	return &models.UserStats{Username: username}, nil
}

type fakeChat struct {
	messages []models.ChatMessage
}

func (f *fakeChat) InsertMessage(_ context.Context, username string, age int, message string) (*models.ChatMessage, error) {
	msg := models.ChatMessage{ID: int64(len(f.messages) + 1), Username: username, Age: age, Message: message, Timestamp: time.Now()}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeChat) RecentMessages(_ context.Context, limit int) ([]models.ChatMessage, error) {
	return f.messages, nil
}

type fakeHub struct{ served int }

func (f *fakeHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	f.served++
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type fixture struct {
	media      *fakeMedia
	downloader *fakeDownloader
	search     *fakeSearch
	chat       *fakeChat
	hub        *fakeHub
	router     *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		media:      &fakeMedia{},
		downloader: &fakeDownloader{dir: t.TempDir()},
		search:     &fakeSearch{},
		chat:       &fakeChat{},
		hub:        &fakeHub{},
		router:     gin.New(),
	}
	NewManager(f.media, f.downloader, f.search, f.chat, f.hub).Register(f.router)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", &media.ValidationError{Message: "not a TikTok URL"}, http.StatusBadRequest, "not a TikTok URL"},
		{"invalid request", &media.InvalidRequestError{Message: "invalid music ID"}, http.StatusBadRequest, "invalid music ID"},
		{"not found", &media.NotFoundError{Message: "no videos"}, http.StatusNotFound, "no videos"},
		{"auth 400", media.UpstreamAuth("Invalid cookie!", http.StatusBadRequest), http.StatusBadRequest, "Invalid cookie!"},
		{"auth 500", media.UpstreamAuth("cookie missing", 0), http.StatusInternalServerError, "cookie missing"},
		{"extraction hides stderr", &ytdlp.ExtractionError{Op: "metadata", ExitCode: 1, Stderr: "ERROR: secret path"}, http.StatusInternalServerError, "Failed to process TikTok URL"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Failed to process TikTok URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.media.err = tt.err

			rec := f.do(http.MethodPost, "/api/tiktok/info", `{"url":"https://www.tiktok.com/@u/video/1"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, message(t, rec))
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.media.info = &models.NormalizedMedia{Title: "clip", ContentType: models.ContentVideo}

	rec := f.do(http.MethodPost, "/api/tiktok/info", `{"url":"https://vm.tiktok.com/ZMabc/"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://vm.tiktok.com/ZMabc/"}, f.media.gotURLs)
	assert.Contains(t, rec.Body.String(), `"title":"clip"`)

	rec = f.do(http.MethodPost, "/api/tiktok/info", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadStreamsAndCleansUp(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/tiktok/download/image?url=https%3A%2F%2Fwww.tiktok.com%2F%40u%2Fphoto%2F1&imageIndex=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="tiktok-video-1.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "mp4 bytes", rec.Body.String())

	require.Len(t, f.downloader.requests, 1)
	req := f.downloader.requests[0]
	assert.Equal(t, media.KindImage, req.Kind)
	assert.Equal(t, "https://www.tiktok.com/@u/photo/1", req.URL)
	require.NotNil(t, req.ImageIndex)
	assert.Equal(t, 2, *req.ImageIndex)

	assert.NoFileExists(t, f.downloader.artifact.Path)
}

func TestDownloadBadInput(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/tiktok/download/gif?url=https://www.tiktok.com/@u/video/1",
		"/api/tiktok/download/video",
		"/api/tiktok/download/image?url=https://www.tiktok.com/@u/photo/1&imageIndex=two",
	} {
		rec := f.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Empty(t, f.downloader.requests)
}

func TestDownloadNotFound(t *testing.T) {
	f := newFixture(t)
	f.downloader.err = &media.NotFoundError{Message: "image index out of range"}

	rec := f.do(http.MethodGet, "/api/tiktok/download/image?url=https://www.tiktok.com/@u/photo/1&imageIndex=5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchAndLatestStreamZip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tiktok/batch", `{"urls":["https://www.tiktok.com/@a/video/1","https://www.tiktok.com/@b/video/2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tiktok-batch-2-videos.zip")
	assert.NoFileExists(t, f.downloader.artifact.Path)

	rec = f.do(http.MethodGet, "/api/tiktok/user/chef/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tiktok-chef-latest-5.zip")
	assert.NoFileExists(t, f.downloader.artifact.Path)
}

func TestMetadataBatch(t *testing.T) {
	f := newFixture(t)
	f.media.batch = &models.BatchResult{Total: 2, Successful: 1, Failed: 1}

	rec := f.do(http.MethodPost, "/api/tiktok/metadata/batch", `{"urls":["a","b"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, f.media.gotURLs)
	assert.Contains(t, rec.Body.String(), `"failed":1`)
}

func TestSearchEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tiktok/search", `{"query":"@chef","limit":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/tiktok/search/keyword", `{"keyword":"cats","type":"user","page":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, search.KeywordUser, f.search.kind)

	rec = f.do(http.MethodPost, "/api/tiktok/search/keyword", `{"keyword":"cats","type":"sound"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/tiktok/user/@star/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "@star", f.search.username)
}

func TestKeywordSearchCookieErrors(t *testing.T) {
	f := newFixture(t)
	f.search.err = media.UpstreamAuth("TIKTOK_COOKIE is not configured", http.StatusInternalServerError)

	rec := f.do(http.MethodPost, "/api/tiktok/search/keyword", `{"keyword":"cats"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TIKTOK_COOKIE is not configured", message(t, rec))
}

func TestHashtagNotImplemented(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/tiktok/hashtag/fyp", "")

	require.Equal(t, http.StatusNotImplemented, rec.Code)
	var body struct {
		Message      string            `json:"message"`
		Alternatives map[string]string `json:"alternatives"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	assert.Contains(t, body.Alternatives, "byUser")
	assert.Contains(t, body.Alternatives, "byUrls")
	assert.Contains(t, body.Alternatives, "singleVideo")
}

func TestChatMessages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/chat/messages", `{"username":"ana","age":22,"message":"hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":1`)

	for _, body := range []string{
		`{"username":"ana","message":"no age"}`,
		`{"username":"ana","age":22,"message":"   "}`,
		`{"username":"ana","age":500,"message":"old"}`,
	} {
		rec = f.do(http.MethodPost, "/api/chat/messages", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = f.do(http.MethodGet, "/api/chat/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []models.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	assert.Len(t, messages, 1)
}

func TestHealthIndexAndWebsocket(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)

	rec := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	f.do(http.MethodGet, "/ws", "")
	assert.Equal(t, 1, f.hub.served)
}
