package handlers

// handlers expose the media service over HTTP. They parse and bind the
// request, call into media/search/chat and map typed errors to status codes.

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tokgrab/media"
	"tokgrab/models"
	"tokgrab/pages"
	"tokgrab/search"
)

type MediaService interface {
	Info(ctx context.Context, rawURL string) (*models.NormalizedMedia, error)
	MetadataBatch(ctx context.Context, urls []string) (*models.BatchResult, error)
}

type MediaDownloader interface {
	Download(ctx context.Context, req media.Request) (*media.Artifact, error)
	DownloadBatch(ctx context.Context, urls []string) (*media.Artifact, error)
	DownloadLatest(ctx context.Context, username string) (*media.Artifact, error)
}

type Searcher interface {
	UserSearch(ctx context.Context, query string, limit int) (*models.SearchResponse, error)
	KeywordSearch(ctx context.Context, keyword string, kind search.KeywordType, page int) (*models.KeywordSearchResponse, error)
	UserStats(ctx context.Context, username string) (*models.UserStats, error)
}

type ChatStore interface {
	InsertMessage(ctx context.Context, username string, age int, message string) (*models.ChatMessage, error)
	RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
}

type ChatHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type Manager struct {
	Media      MediaService
	Downloader MediaDownloader
	Search     Searcher
	ChatStore  ChatStore
	ChatHub    ChatHub
	logger     *log.Entry
}

func NewManager(service MediaService, downloader MediaDownloader, searcher Searcher, store ChatStore, hub ChatHub) *Manager {
	return &Manager{
		Media:      service,
		Downloader: downloader,
		Search:     searcher,
		ChatStore:  store,
		ChatHub:    hub,
		logger:     log.WithFields(log.Fields{"module": "handlers"}),
	}
}

// Register mounts every route on router.
func (manager *Manager) Register(router gin.IRouter) {
	router.GET("/", manager.handleIndex)
	router.GET("/health", manager.handleHealth)

	api := router.Group("/api/tiktok")
	api.POST("/info", manager.handleInfo)
	api.GET("/download/:type", manager.handleDownload)
	api.POST("/batch", manager.handleBatchDownload)
	api.POST("/metadata/batch", manager.handleMetadataBatch)
	api.POST("/search", manager.handleUserSearch)
	api.POST("/search/keyword", manager.handleKeywordSearch)
	api.GET("/user/:username/stats", manager.handleUserStats)
	api.GET("/user/:username/latest", manager.handleLatest)
	api.GET("/hashtag/:tag", manager.handleHashtag)

	chat := router.Group("/api/chat")
	chat.GET("/messages", manager.handleListMessages)
	chat.POST("/messages", manager.handleCreateMessage)

	router.GET("/ws", manager.handleWebsocket)
}

func (manager *Manager) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pages.Landing))
}

func (manager *Manager) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
