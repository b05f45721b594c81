package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/photofolio/internal/db"
)

// PhotoLister loads the newest photos.
type PhotoLister interface {
	List(ctx context.Context, limit int) ([]db.Photo, error)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

var staticRoutes = []string{"", "/contact", "/categories"}

// SitemapService builds sitemap.xml and robots.txt.
type SitemapService struct {
	photos     PhotoLister
	baseURL    string
	authorSlug string
	limit      int
	now        func() time.Time
}

// NewSitemapService creates a SitemapService listing up to limit photos.
func NewSitemapService(photos PhotoLister, baseURL, authorSlug string, limit int) *SitemapService {
	if limit <= 0 {
		limit = 20
	}
	return &SitemapService{
		photos:     photos,
		baseURL:    strings.TrimRight(baseURL, "/"),
		authorSlug: authorSlug,
		limit:      limit,
		now:        time.Now,
	}
}

// PhotoPath is the canonical share path for a photo.
func PhotoPath(authorSlug, id string) string {
	if authorSlug == "" {
		return "/photo/" + id
	}
	return "/" + authorSlug + "/photo/" + id
}

// Sitemap renders the XML document. A failed photo query still yields the static routes.
func (s *SitemapService) Sitemap(ctx context.Context) ([]byte, error) {
	now := s.now().UTC().Format(time.RFC3339)
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	for _, route := range staticRoutes {
		entry := sitemapURL{Loc: s.baseURL + route, LastMod: now, ChangeFreq: "weekly", Priority: "0.8"}
		if route == "" {
			entry.ChangeFreq = "daily"
			entry.Priority = "1.0"
		}
		set.URLs = append(set.URLs, entry)
	}

	photos, listErr := s.photos.List(ctx, s.limit)
	for _, photo := range photos {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.baseURL + PhotoPath(s.authorSlug, photo.ID),
			LastMod:    photo.LastModified().UTC().Format(time.RFC3339),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), listErr
}

// Robots renders robots.txt, keeping crawlers out of the admin and API routes.
func (s *SitemapService) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Host: %s\n", s.baseURL)
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", s.baseURL)
	return b.String()
}
