package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/feed"
	"github.com/photofolio/internal/service"
	"github.com/photofolio/internal/taxonomy"
	"go.uber.org/zap"
)

const (
	defaultFeedLimit = 100
	maxFeedLimit     = 500
)

// photoResponse flags records whose category is no longer offered by the edit form.
type photoResponse struct {
	db.Photo
	LegacyCategory bool `json:"legacyCategory,omitempty"`
}

func toPhotoResponses(photos []db.Photo) []photoResponse {
	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, photoResponse{Photo: p, LegacyCategory: service.IsLegacyCategory(p.Category)})
	}
	return out
}

func feedLimit(raw string) int {
	limit := parsePositiveInt(raw, defaultFeedLimit)
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}

// ListPhotos returns the gallery, newest first, narrowed to ?category= when given.
// The live feed snapshot is used when available; a failed refresh keeps serving the last one.
func (a *API) ListPhotos(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	limit := feedLimit(c.Query("limit"))

	var (
		photos []db.Photo
		stale  bool
	)
	if a.gallery != nil && a.gallery.Loaded() {
		photos = a.gallery.Visible(category)
		stale = a.gallery.Err() != nil
	} else {
		list, err := a.photos.List(c.Request.Context(), 0)
		if err != nil {
			a.logger.Error("list photos", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Failed to load photos.")
			return
		}
		photos = taxonomy.Filter(list, category, func(p db.Photo) string { return p.Category })
	}

	total := len(photos)
	if len(photos) > limit {
		photos = photos[:limit]
	}

	body := gin.H{
		"photos": toPhotoResponses(photos),
		"total":  total,
	}
	if category != "" && !taxonomy.IsSentinel(category) {
		body["category"] = category
	}
	if stale {
		body["stale"] = true
	}
	c.JSON(http.StatusOK, body)
}

// ListHighlights returns the three newest photos.
func (a *API) ListHighlights(c *gin.Context) {
	var photos []db.Photo
	if a.highlights != nil && a.highlights.Loaded() {
		photos = a.highlights.Photos()
	} else {
		list, err := a.photos.List(c.Request.Context(), highlightCount)
		if err != nil {
			a.logger.Error("list highlights", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Could not fetch highlight photos.")
			return
		}
		photos = list
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(photos)})
}

// GetPhoto returns one photo plus its share metadata.
func (a *API) GetPhoto(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid photo ID.")
		return
	}

	photo, err := a.photos.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPhotoNotFound) {
			respondError(c, http.StatusNotFound, "Photo not found.")
			return
		}
		a.respondServiceError(c, err, "Failed to load photo.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photo": photoResponse{Photo: *photo, LegacyCategory: service.IsLegacyCategory(photo.Category)},
		"meta":  service.BuildPhotoMeta(photo, a.site.AuthorName, a.site.SiteName, a.canonicalPhotoURL(photo.ID)),
	})
}

// ListCategories returns the filter options: the sentinel first, then the current taxonomy.
func (a *API) ListCategories(c *gin.Context) {
	options := make([]string, 0, len(taxonomy.Categories)+1)
	options = append(options, taxonomy.AllCategories)
	options = append(options, taxonomy.Categories...)

	c.JSON(http.StatusOK, gin.H{
		"categories": options,
		"legacy":     taxonomy.Legacy,
	})
}

// StreamPhotos upgrades to a websocket that pushes the newest photos on every change.
func (a *API) StreamPhotos(c *gin.Context) {
	if a.hub == nil {
		respondError(c, http.StatusServiceUnavailable, "Live feed unavailable.")
		return
	}
	a.hub.ServeWS(c.Writer, c.Request, feed.Query{Limit: feedLimit(c.Query("limit"))})
}

func (a *API) canonicalPhotoURL(id string) string {
	return a.site.BaseURL + service.PhotoPath(a.site.AuthorSlug, id)
}
