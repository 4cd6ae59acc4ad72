package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tokgrab/media"
	"tokgrab/search"
)

type urlRequest struct {
	URL string `json:"url"`
}

type urlsRequest struct {
	URLs []string `json:"urls"`
}

type userSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type keywordSearchRequest struct {
	Keyword string `json:"keyword"`
	Type    string `json:"type"`
	Page    int    `json:"page"`
}

func (manager *Manager) handleInfo(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	info, err := manager.Media.Info(c.Request.Context(), req.URL)
	if err != nil {
		manager.respondError(c, err, "Failed to process TikTok URL")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (manager *Manager) handleDownload(c *gin.Context) {
	kind, ok := media.ParseDownloadKind(c.Param("type"))
	if !ok {
		badRequest(c, "Invalid download type: use video, audio or image")
		return
	}
	url := c.Query("url")
	if url == "" {
		badRequest(c, "URL is required")
		return
	}

	req := media.Request{Kind: kind, URL: url}
	if raw, present := c.GetQuery("imageIndex"); present && raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "imageIndex must be an integer")
			return
		}
		req.ImageIndex = &idx
	}

	artifact, err := manager.Downloader.Download(c.Request.Context(), req)
	if err != nil {
		manager.respondError(c, err, "Failed to download content")
		return
	}
	manager.sendArtifact(c, artifact)
}

func (manager *Manager) handleBatchDownload(c *gin.Context) {
	var req urlsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: expected {\"urls\": [...]}")
		return
	}

	artifact, err := manager.Downloader.DownloadBatch(c.Request.Context(), req.URLs)
	if err != nil {
		manager.respondError(c, err, "Failed to download videos")
		return
	}
	manager.sendArtifact(c, artifact)
}

func (manager *Manager) handleMetadataBatch(c *gin.Context) {
	var req urlsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: expected {\"urls\": [...]}")
		return
	}

	result, err := manager.Media.MetadataBatch(c.Request.Context(), req.URLs)
	if err != nil {
		manager.respondError(c, err, "Failed to fetch metadata")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (manager *Manager) handleUserSearch(c *gin.Context) {
	var req userSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := manager.Search.UserSearch(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		manager.respondError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (manager *Manager) handleKeywordSearch(c *gin.Context) {
	var req keywordSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	kind, ok := search.ParseKeywordType(req.Type)
	if !ok {
		badRequest(c, "type must be one of video, user, live")
		return
	}

	result, err := manager.Search.KeywordSearch(c.Request.Context(), req.Keyword, kind, req.Page)
	if err != nil {
		manager.respondError(c, err, "Keyword search failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (manager *Manager) handleUserStats(c *gin.Context) {
	stats, err := manager.Search.UserStats(c.Request.Context(), c.Param("username"))
	if err != nil {
		manager.respondError(c, err, "Failed to fetch user stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (manager *Manager) handleLatest(c *gin.Context) {
	artifact, err := manager.Downloader.DownloadLatest(c.Request.Context(), c.Param("username"))
	if err != nil {
		manager.respondError(c, err, "Failed to download the latest videos")
		return
	}
	manager.sendArtifact(c, artifact)
}

// handleHashtag is kept as an explicit 501: TikTok blocks hashtag listings
// for automated clients.
func (manager *Manager) handleHashtag(c *gin.Context) {
	tag := strings.TrimPrefix(c.Param("tag"), "#")
	manager.logger.Infof("hashtag download requested for #%s, not supported", tag)

	c.JSON(http.StatusNotImplemented, gin.H{
		"message": "Searching and downloading by hashtag is not available",
		"reason":  "TikTok blocks hashtag listings for automated tools",
		"alternatives": gin.H{
			"byUser":      "Download the latest videos of a user with GET /api/tiktok/user/:username/latest",
			"byUrls":      "Download specific videos by URL with POST /api/tiktok/batch and a list of URLs",
			"singleVideo": "Download a single video with GET /api/tiktok/download/video?url=",
		},
	})
}
