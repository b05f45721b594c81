package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/service"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseIDParam(c *gin.Context, key string) (string, bool) {
	id := strings.TrimSpace(c.Param(key))
	if id == "" || len(id) > 64 {
		return "", false
	}
	return id, true
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// respondServiceError maps pipeline errors to status codes and admin-readable messages.
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	var (
		validation *service.ValidationError
		transfer   *service.TransferError
		write      *service.WriteError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.Is(err, service.ErrPhotoNotFound):
		respondError(c, http.StatusNotFound, "Photo not found.")
	case errors.Is(err, service.ErrDeleteInProgress):
		respondError(c, http.StatusConflict, "Please wait for the current delete to finish.")
	case errors.Is(err, service.ErrInvalidAsset):
		respondError(c, http.StatusNotFound, "Unknown site asset.")
	case errors.As(err, &transfer):
		c.JSON(http.StatusBadGateway, gin.H{"error": transfer.Message(), "kind": transfer.Kind})
	case errors.As(err, &write):
		body := gin.H{"error": write.Message()}
		if write.Orphan != "" {
			body["orphan"] = write.Orphan
		}
		a.logger.Error("record write failed", zap.String("op", write.Op), zap.Error(write.Err))
		c.JSON(http.StatusInternalServerError, body)
	default:
		a.logger.Error(fallback, zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
