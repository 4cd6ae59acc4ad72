package tikwm

import "encoding/json"

// envelope is the wrapper around every tikwm response.
type envelope struct {
	Code          int             `json:"code"`
	Msg           string          `json:"msg"`
	ProcessedTime float64         `json:"processed_time"`
	Data          json.RawMessage `json:"data"`
}

type Author struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type MusicInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Play     string `json:"play"`
	Author   string `json:"author"`
	Original bool   `json:"original"`
}

// Post is a TikTok item as returned by tikwm. Slideshows carry their image
// URLs in Images; some API revisions use Image instead.
type Post struct {
	ID           string    `json:"id"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Cover        string    `json:"cover"`
	Duration     int       `json:"duration"`
	Play         string    `json:"play"`
	Hdplay       string    `json:"hdplay"`
	Music        string    `json:"music"`
	MusicInfo    MusicInfo `json:"music_info"`
	PlayCount    int64     `json:"play_count"`
	DiggCount    int64     `json:"digg_count"`
	CommentCount int64     `json:"comment_count"`
	ShareCount   int64     `json:"share_count"`
	CollectCount int64     `json:"collect_count"`
	CreateTime   int64     `json:"create_time"`
	Author       Author    `json:"author"`
	Images       []string  `json:"images"`
	Image        []string  `json:"image"`
}

// PostID returns the post id, falling back to VideoID.
func (p Post) PostID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.VideoID
}

// ImageURLs returns whichever image list the response populated.
func (p Post) ImageURLs() []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	return p.Image
}

type musicFeed struct {
	Videos  []Post          `json:"videos"`
	Cursor  json.RawMessage `json:"cursor"` // string or number depending on endpoint
	HasMore bool            `json:"hasMore"`
}
