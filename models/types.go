package models

import "time"

type ContentType string

const (
	ContentVideo     ContentType = "video"
	ContentAudio     ContentType = "audio"
	ContentSlideshow ContentType = "slideshow"
)

type SlideshowImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NormalizedMedia is the /api/tiktok/info response. Every field is always
// populated; Images is omitted unless the post is a slideshow.
type NormalizedMedia struct {
	ContentType ContentType      `json:"contentType"`
	VideoURL    string           `json:"videoUrl"`
	AudioURL    string           `json:"audioUrl"`
	Thumbnail   string           `json:"thumbnail"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Images      []SlideshowImage `json:"images,omitempty"`
	Metadata    TechnicalInfo    `json:"metadata"`
	Creator     Creator          `json:"creator"`
	Stats       Stats            `json:"stats"`
	Audio       AudioInfo        `json:"audio"`
	Hashtags    []string         `json:"hashtags"`
	UploadDate  string           `json:"uploadDate"`
	VideoID     string           `json:"videoId"`
}

type TechnicalInfo struct {
	Duration        string  `json:"duration"`
	VideoSize       string  `json:"videoSize"`
	AudioSize       string  `json:"audioSize"`
	Resolution      string  `json:"resolution"`
	Format          string  `json:"format"`
	Codec           string  `json:"codec"`
	FPS             float64 `json:"fps"`
	Bitrate         string  `json:"bitrate"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	AudioCodec      string  `json:"audioCodec"`
	AudioChannels   int     `json:"audioChannels"`
	AudioSampleRate string  `json:"audioSampleRate"`
}

type Creator struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"verified"`
}

type Stats struct {
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Shares    int64 `json:"shares"`
	Favorites int64 `json:"favorites"`
}

type AudioInfo struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// MetadataSummary is the per-URL payload of a metadata batch.
type MetadataSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Creator     string    `json:"creator"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	Shares      int64     `json:"shares"`
	Duration    float64   `json:"duration"`
	UploadDate  string    `json:"uploadDate"`
	Thumbnail   string    `json:"thumbnail"`
	Music       AudioInfo `json:"music"`
}

type BatchItem struct {
	Success bool             `json:"success"`
	URL     string           `json:"url"`
	Data    *MetadataSummary `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type BatchResult struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []BatchItem `json:"results"`
}

type SearchResult struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	Verified    bool   `json:"verified"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
	Shares      int64  `json:"shares"`
	Duration    string `json:"duration"`
	UploadDate  string `json:"uploadDate"`
}

type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	Query        string         `json:"query"`
	TotalResults int            `json:"totalResults"`
}

// KeywordSearchResponse passes TikTok's result objects through untouched.
type KeywordSearchResponse struct {
	Status       string           `json:"status"`
	Keyword      string           `json:"keyword"`
	Type         string           `json:"type"`
	Page         int              `json:"page"`
	TotalResults int              `json:"totalResults"`
	Results      []map[string]any `json:"results"`
}

type LatestVideo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Views      int64  `json:"views"`
	Likes      int64  `json:"likes"`
	Comments   int64  `json:"comments"`
	UploadDate string `json:"uploadDate"`
}

type UserStats struct {
	Username      string      `json:"username"`
	Nickname      string      `json:"nickname"`
	Verified      bool        `json:"verified"`
	FollowerCount int64       `json:"followerCount"`
	VideoCount    int64       `json:"videoCount"`
	TotalViews    int64       `json:"totalViews"`
	Bio           string      `json:"bio"`
	Avatar        string      `json:"avatar"`
	LatestVideo   LatestVideo `json:"latestVideo"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Age       int       `json:"age"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
