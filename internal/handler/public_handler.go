package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html"))
}

// ShowPhotoPage renders the shareable page for one photo with its Open Graph and Twitter tags.
func (a *API) ShowPhotoPage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		a.renderPhotoPage(c, http.StatusNotFound, nil)
		return
	}

	photo, err := a.photos.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrPhotoNotFound) {
			a.logger.Error("load photo page", zap.String("id", id), zap.Error(err))
		}
		a.renderPhotoPage(c, http.StatusNotFound, nil)
		return
	}
	a.renderPhotoPage(c, http.StatusOK, photo)
}

func (a *API) renderPhotoPage(c *gin.Context, status int, photo *db.Photo) {
	data := gin.H{
		"siteName": a.site.SiteName,
		"author":   a.site.AuthorName,
	}
	canonical := ""
	if photo != nil {
		canonical = a.canonicalPhotoURL(photo.ID)
		data["photo"] = photo
		data["caption"] = db.Deref(photo.Caption)
		data["location"] = db.Deref(photo.Location)
		if desc := db.Deref(photo.Description); desc != "" {
			rendered, err := renderMarkdown(desc)
			if err != nil {
				a.logger.Warn("render description", zap.String("id", photo.ID), zap.Error(err))
			} else {
				data["description"] = rendered
			}
		}
	}
	data["meta"] = service.BuildPhotoMeta(photo, a.site.AuthorName, a.site.SiteName, canonical)
	c.HTML(status, "photo.html", data)
}

// Sitemap serves sitemap.xml. A failed photo query still yields the static routes.
func (a *API) Sitemap(c *gin.Context) {
	out, err := a.sitemap.Sitemap(c.Request.Context())
	if err != nil {
		a.logger.Warn("sitemap photo query failed", zap.Error(err))
	}
	if out == nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", out)
}

// Robots serves robots.txt.
func (a *API) Robots(c *gin.Context) {
	c.String(http.StatusOK, a.sitemap.Robots())
}

func renderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	safe := sanitizer.SanitizeBytes(buf.Bytes())
	return template.HTML(safe), nil
}
