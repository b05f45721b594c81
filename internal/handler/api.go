package handler

import (
	"github.com/photofolio/internal/feed"
	"github.com/photofolio/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SiteInfo is the fixed identity used in share pages and the sitemap.
type SiteInfo struct {
	AuthorName string
	AuthorSlug string
	SiteName   string
	BaseURL    string
}

// Deps are the services the handlers need.
type Deps struct {
	DB       *gorm.DB
	Photos   *service.PhotoService
	Settings *service.SiteSettingService
	Auth     *service.AuthService
	Sitemap  *service.SitemapService
	Hub      *feed.Hub
	Site     SiteInfo
	Logger   *zap.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	photos     *service.PhotoService
	settings   *service.SiteSettingService
	auth       *service.AuthService
	sitemap    *service.SitemapService
	hub        *feed.Hub
	gallery    *feed.View
	highlights *feed.View
	subs       []*feed.Subscription
	site       SiteInfo
	logger     *zap.Logger
}

// highlightCount is the number of newest photos shown above the gallery.
const highlightCount = 3

// NewAPI constructs a handler set with shared services. When a hub is given, the public
// gallery and highlights are served from live feed subscriptions.
func NewAPI(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &API{
		db:       deps.DB,
		photos:   deps.Photos,
		settings: deps.Settings,
		auth:     deps.Auth,
		sitemap:  deps.Sitemap,
		hub:      deps.Hub,
		site:     deps.Site,
		logger:   logger.Named("http"),
	}

	if deps.Hub != nil {
		a.gallery = feed.NewView()
		a.highlights = feed.NewView()
		a.subs = append(a.subs,
			deps.Hub.Subscribe(feed.Query{}, a.gallery.Handler()),
			deps.Hub.Subscribe(feed.Query{Limit: highlightCount}, a.highlights.Handler()),
		)
	}
	return a
}

// Close releases the feed subscriptions.
func (a *API) Close() {
	for _, sub := range a.subs {
		sub.Cancel()
	}
}
