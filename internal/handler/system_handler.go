package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/service"
	"go.uber.org/zap"
)

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	body := gin.H{
		"status":   "ok",
		"database": "up",
	}
	if a.hub != nil {
		body["feedSubscribers"] = a.hub.Len()
	}
	c.JSON(http.StatusOK, body)
}

// GetSiteSettings 返回头像与首页背景图链接，未设置时使用默认值。
func (a *API) GetSiteSettings(c *gin.Context) {
	settings, err := a.settings.Get(c.Request.Context())
	if err != nil {
		a.logger.Error("load site settings", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load site settings.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSiteAsset 使用表单字段 "file" 替换一张站点图片。
func (a *API) UpdateSiteAsset(c *gin.Context) {
	asset, err := service.ParseSiteAsset(c.Param("asset"))
	if err != nil {
		a.respondServiceError(c, err, "Unknown site asset.")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Please select an image to upload.")
		return
	}

	settings, err := a.settings.UpdateAsset(c.Request.Context(), asset, multipartUpload(fh))
	if err != nil {
		a.respondServiceError(c, err, "Failed to update site image.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Site image updated.", "settings": settings})
}

// ResetSiteAsset 删除已保存的链接，恢复默认图片。
func (a *API) ResetSiteAsset(c *gin.Context) {
	asset, err := service.ParseSiteAsset(c.Param("asset"))
	if err != nil {
		a.respondServiceError(c, err, "Unknown site asset.")
		return
	}

	settings, err := a.settings.ResetAsset(c.Request.Context(), asset)
	if err != nil {
		a.respondServiceError(c, err, "Failed to reset site image.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Site image reset.", "settings": settings})
}
