package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"tokgrab/media"
	"tokgrab/sentryhelper"
)

// statusClientClosed is logged when the caller went away mid-request.
const statusClientClosed = 499

// respondError maps a typed error to its status code. Extraction and unknown
// errors answer with fallback so tool diagnostics never reach the client.
func (manager *Manager) respondError(c *gin.Context, err error, fallback string) {
	var (
		validationErr *media.ValidationError
		invalidErr    *media.InvalidRequestError
		notFoundErr   *media.NotFoundError
		authErr       *media.UpstreamAuthError
		extractionErr *media.ExtractionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": validationErr.Message})
	case errors.As(err, &invalidErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": invalidErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"message": notFoundErr.Message})
	case errors.As(err, &authErr):
		c.JSON(authErr.Status, gin.H{"message": authErr.Message})
	case errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil:
		manager.logger.Debugf("%s %s: client went away", c.Request.Method, c.FullPath())
		c.AbortWithStatus(statusClientClosed)
	case errors.As(err, &extractionErr):
		manager.logger.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
	default:
		manager.logger.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
		sentryhelper.CaptureException(c.Request.Context(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// sendArtifact streams the artifact as an attachment. Cleanup runs whether
// the copy finishes, fails or the client disconnects.
func (manager *Manager) sendArtifact(c *gin.Context, artifact *media.Artifact) {
	defer artifact.Cleanup()

	file, err := os.Open(artifact.Path)
	if err != nil {
		manager.respondError(c, fmt.Errorf("open artifact: %w", err), "Failed to prepare download")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		manager.respondError(c, fmt.Errorf("stat artifact: %w", err), "Failed to prepare download")
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), artifact.ContentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", artifact.Filename),
	})
}
