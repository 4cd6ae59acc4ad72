package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const recentMessages = 100

type chatMessageRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Age      int    `json:"age" binding:"required,min=1,max=120"`
	Message  string `json:"message" binding:"required,max=1000"`
}

func (manager *Manager) handleListMessages(c *gin.Context) {
	messages, err := manager.ChatStore.RecentMessages(c.Request.Context(), recentMessages)
	if err != nil {
		manager.respondError(c, err, "Failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (manager *Manager) handleCreateMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username, age (1-120) and message are required")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Message) == "" {
		badRequest(c, "username and message must not be blank")
		return
	}

	saved, err := manager.ChatStore.InsertMessage(c.Request.Context(), req.Username, req.Age, req.Message)
	if err != nil {
		manager.respondError(c, err, "Failed to create message")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (manager *Manager) handleWebsocket(c *gin.Context) {
	manager.ChatHub.ServeWS(c.Writer, c.Request)
}
