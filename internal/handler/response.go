package handler

import (
	"net/http"

	"Chatline/internal/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, body any, message string) {
	c.JSON(status, gin.H{
		"HttpStatusCode": status,
		"ResponseBody":   body,
		"IsSuccess":      status < http.StatusBadRequest,
		"Message":        message,
	})
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	respond(c, kind.Status(), nil, apperror.PublicMessage(err))
}

func abortWith(c *gin.Context, status int, message string) {
	respond(c, status, nil, message)
	c.Abort()
}
