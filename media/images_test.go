package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sentry "github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokgrab/models"
	"tokgrab/tikwm"
)

const universalState = `{"__DEFAULT_SCOPE__":{"webapp.video-detail":{"itemInfo":{"itemStruct":{"imagePost":{"images":[
	{"imageURL":{"urlList":["https://p16/a.jpeg","https://p19/a.jpeg"]},"imageWidth":1080,"imageHeight":1440},
	{"imageURL":{"urlList":[]}},
	{"imageURL":{"url":"https://p16/b.jpeg"}},
	{"url":"https://p16/c.jpeg","imageWidth":0}
]}}}}}}`

const sigiState = `{"ItemModule":{
	"7300000000000000002":{"imagePost":{"images":[{"imageURL":{"urlList":["https://sigi/first.jpeg"]}}]}},
	"7300000000000000001":{"imagePost":{"images":[{"imageURL":{"urlList":["https://sigi/second.jpeg"]}}]}}
}}`

const nextData = `{"props":{"pageProps":{"itemInfo":{"itemStruct":{"imagePost":{"images":[
	{"imageURL":{"urlList":["https://next/a.jpeg"]},"imageWidth":720,"imageHeight":960}
]}}}}}}`

func TestParseVariantUniversalData(t *testing.T) {
	got, ok := ParseVariant(VariantUniversalData, []byte(universalState))
	require.True(t, ok)

	assert.Equal(t, "default_scope", got.Path)
	assert.Equal(t, []models.SlideshowImage{
		{URL: "https://p16/a.jpeg", Width: 1080, Height: 1440},
		{URL: "https://p16/b.jpeg", Width: 1080, Height: 1920},
		{URL: "https://p16/c.jpeg", Width: 1080, Height: 1920},
	}, got.Images)
}

func TestParseVariantItemModuleUsesFirstKey(t *testing.T) {
	got, ok := ParseVariant(VariantSigiState, []byte(sigiState))
	require.True(t, ok)

	assert.Equal(t, "item_module", got.Path)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "https://sigi/first.jpeg", got.Images[0].URL)
}

func TestParseVariantNextData(t *testing.T) {
	got, ok := ParseVariant(VariantNextData, []byte(nextData))
	require.True(t, ok)

	assert.Equal(t, "page_props", got.Path)
	assert.Equal(t, []models.SlideshowImage{{URL: "https://next/a.jpeg", Width: 720, Height: 960}}, got.Images)
}

func TestParseVariantMisses(t *testing.T) {
	for name, raw := range map[string]string{
		"invalid json":   `{"__DEFAULT_SCOPE__":`,
		"video post":     `{"__DEFAULT_SCOPE__":{"webapp.video-detail":{"itemInfo":{"itemStruct":{"video":{}}}}}}`,
		"empty object":   `{}`,
		"array document": `[]`,
	} {
		_, ok := ParseVariant(VariantUniversalData, []byte(raw))
		assert.False(t, ok, name)
	}
}

func page(scripts ...string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	for _, s := range scripts {
		b.WriteString(s)
	}
	b.WriteString("</head><body></body></html>")
	return b.String()
}

func TestExtractPageImagesFallsThroughVariants(t *testing.T) {
	html := page(
		`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{"__DEFAULT_SCOPE__":{}}</script>`,
		`<script id="SIGI_STATE" type="application/json">not json at all</script>`,
		`<script type="application/json" id="__NEXT_DATA__">`+nextData+`</script>`,
	)

	got, ok, err := ExtractPageImages(strings.NewReader(html))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, VariantNextData, got.Variant)
	assert.Len(t, got.Images, 1)
}

func TestExtractPageImagesNone(t *testing.T) {
	_, ok, err := ExtractPageImages(strings.NewReader(page()))
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakePostLookup struct {
	post  *tikwm.Post
	err   error
	asked []string
}

func (f *fakePostLookup) GetPost(_ context.Context, postURL string) (*tikwm.Post, error) {
	f.asked = append(f.asked, postURL)
	return f.post, f.err
}

func TestResolverPrefersAPI(t *testing.T) {
	pageHits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageHits++
	}))
	defer server.Close()

	api := &fakePostLookup{post: &tikwm.Post{Image: []string{"https://api/1.jpg", "https://api/2.jpg"}}}
	resolver := NewImageResolver(api, "ua")

	got := resolver.Resolve(context.Background(), server.URL+"/@u/photo/1?x=y")

	assert.Equal(t, []models.SlideshowImage{
		{URL: "https://api/1.jpg", Width: 1440, Height: 1440},
		{URL: "https://api/2.jpg", Width: 1440, Height: 1440},
	}, got)
	assert.Equal(t, []string{server.URL + "/@u/video/1"}, api.asked)
	assert.Zero(t, pageHits, "page is not scraped when the API has images")
}

func TestResolverFallsBackToPage(t *testing.T) {
	tests := []struct {
		name string
		api  *fakePostLookup
	}{
		{"api error", &fakePostLookup{err: errors.New("rate limited")}},
		{"api empty", &fakePostLookup{post: &tikwm.Post{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/@u/video/1", r.URL.Path)
				assert.Equal(t, "ua", r.Header.Get("User-Agent"))
				assert.Equal(t, "https://www.tiktok.com/", r.Header.Get("Referer"))
				w.Write([]byte(page(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">` + universalState + `</script>`)))
			}))
			defer server.Close()

			got := NewImageResolver(tt.api, "ua").Resolve(context.Background(), server.URL+"/@u/photo/1")
			assert.Len(t, got, 3)
		})
	}
}

func TestResolverNeverFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	got := NewImageResolver(&fakePostLookup{err: errors.New("down")}, "ua").Resolve(context.Background(), server.URL+"/@u/photo/1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolverReportsEmptySlideshow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{}</script>`)))
	}))
	defer server.Close()

	transport := &sentry.MockTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)
	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

	got := NewImageResolver(&fakePostLookup{post: &tikwm.Post{}}, "ua").Resolve(ctx, server.URL+"/@u/photo/1?x=1")
	assert.Empty(t, got)

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "no slideshow images found for "+server.URL+"/@u/video/1", events[0].Message)
}
