package service

import (
	"fmt"
	"strings"

	"github.com/photofolio/internal/db"
)

// PhotoMeta is the link-preview metadata for a photo page.
type PhotoMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	OGTitle     string   `json:"ogTitle"`
	OGDesc      string   `json:"ogDescription"`
	Image       string   `json:"image,omitempty"`
	ImageAlt    string   `json:"imageAlt,omitempty"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	Type        string   `json:"type"`
	TwitterCard string   `json:"twitterCard"`
	URL         string   `json:"url,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
	Found       bool     `json:"found"`
}

// BuildPhotoMeta derives the Open Graph and Twitter card fields. A nil photo yields the
// not-found metadata.
func BuildPhotoMeta(photo *db.Photo, author, siteName, canonicalURL string) PhotoMeta {
	if photo == nil {
		return PhotoMeta{
			Title:       "Photo Not Found | " + siteName,
			Description: "The photo you are looking for could not be found.",
			OGTitle:     "Photo Not Found | " + siteName,
			OGDesc:      "The photo you are looking for could not be found.",
			Type:        "website",
			TwitterCard: "summary",
		}
	}

	title := fmt.Sprintf("%s - Photo by %s", photo.Name, author)
	description := strings.TrimSpace(db.Deref(photo.Description))
	pageDesc := description
	shareDesc := description
	if description == "" {
		pageDesc = fmt.Sprintf("View the photo titled %q by %s, in the %s category.", photo.Name, author, photo.Category)
		shareDesc = fmt.Sprintf("A photo by %s.", author)
	}

	alt := db.Deref(photo.AltText)
	if alt == "" {
		alt = photo.Name
	}

	return PhotoMeta{
		Title:       title,
		Description: pageDesc,
		OGTitle:     title,
		OGDesc:      shareDesc,
		Image:       photo.ImageURL,
		ImageAlt:    alt,
		Width:       photo.ImageWidth,
		Height:      photo.ImageHeight,
		Type:        "article",
		TwitterCard: "summary_large_image",
		URL:         canonicalURL,
		Keywords:    append([]string(nil), photo.Tags...),
		Hashtags:    Hashtags(photo, author),
		Found:       true,
	}
}

// Hashtags builds up to eight share hashtags from category, location and the first three tags.
func Hashtags(photo *db.Photo, author string) []string {
	squash := func(s string) string {
		return strings.NewReplacer(" ", "", "\t", "", ",", "").Replace(s)
	}

	tags := []string{"#" + squash(photo.Category)}
	if loc := db.Deref(photo.Location); loc != "" {
		tags = append(tags, "#"+squash(loc))
	}
	for i, tag := range photo.Tags {
		if i == 3 {
			break
		}
		tags = append(tags, "#"+squash(tag))
	}
	tags = append(tags, "#Photography")
	if a := squash(author); a != "" {
		tags = append(tags, "#"+a)
	}
	tags = append(tags, "#VisualStory")

	if len(tags) > 8 {
		tags = tags[:8]
	}
	return tags
}
