package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/feed"
	"github.com/photofolio/internal/handler"
	"github.com/photofolio/internal/router"
	"github.com/photofolio/internal/service"
	"github.com/photofolio/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	adminEmail = "owner@example.com"
	adminPass  = "e2e-secret"
	authorSlug = "amrit-kumar-chanchal"
)

type e2eSuite struct {
	server    *httptest.Server
	admin     *http.Client
	public    *http.Client
	uploadDir string
	feed      *websocket.Conn
}

func TestE2E_PhotoLifecycle(t *testing.T) {
	suite := newE2ESuite(t)
	suite.login(t)
	suite.openFeed(t)

	if snap := suite.nextSnapshot(t, func([]db.Photo) bool { return true }); len(snap) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d photos", len(snap))
	}

	ids := suite.uploadBatch(t)
	snap := suite.nextSnapshot(t, func(p []db.Photo) bool { return len(p) == 2 })
	if snap[0].Name != "Rara Lake" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	var list struct {
		Photos []db.Photo `json:"photos"`
		Total  int        `json:"total"`
	}
	suite.getJSON(t, suite.public, "/api/photos?category=Landscape", &list)
	if list.Total != 2 {
		t.Fatalf("expected 2 Landscape photos, got %d", list.Total)
	}
	suite.getJSON(t, suite.public, "/api/photos?category=Portrait", &list)
	if list.Total != 0 {
		t.Fatalf("expected no Portrait photos, got %d", list.Total)
	}

	page := suite.getText(t, suite.public, "/"+authorSlug+"/photo/"+ids[0], http.StatusOK)
	if !strings.Contains(page, `property="og:title" content="Rara Lake - Photo by Amrit Kumar Chanchal"`) {
		t.Fatalf("share page missing og:title:\n%s", page)
	}

	edit := `{"title":"Rara in winter","category":"Nature","altText":"Frozen shore","tags":"rara, winter"}`
	resp := suite.do(t, suite.admin, http.MethodPut, "/admin/api/photos/"+ids[0], "application/json", strings.NewReader(edit))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit failed with %d", resp.StatusCode)
	}
	suite.nextSnapshot(t, func(p []db.Photo) bool {
		for _, photo := range p {
			if photo.ID == ids[0] {
				return photo.Name == "Rara in winter" && photo.Category == "Nature"
			}
		}
		return false
	})

	var uploaded db.Photo
	suite.getJSONField(t, "/api/photos/"+ids[1], "photo", &uploaded)
	blobPath := filepath.Join(suite.uploadDir, filepath.FromSlash(strings.TrimPrefix(uploaded.ImageURL, "/uploads/")))
	if _, err := os.Stat(blobPath); err != nil {
		t.Fatalf("expected blob on disk at %s: %v", blobPath, err)
	}
	if body := suite.getText(t, suite.public, uploaded.ImageURL, http.StatusOK); body == "" {
		t.Fatal("expected uploaded image to be served")
	}

	resp = suite.do(t, suite.admin, http.MethodDelete, "/admin/api/photos/"+ids[1], "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed with %d", resp.StatusCode)
	}
	suite.nextSnapshot(t, func(p []db.Photo) bool { return len(p) == 1 && p[0].ID == ids[0] })
	if _, err := os.Stat(blobPath); !os.IsNotExist(err) {
		t.Fatalf("expected blob to be removed, stat err %v", err)
	}

	sitemap := suite.getText(t, suite.public, "/sitemap.xml", http.StatusOK)
	if !strings.Contains(sitemap, ids[0]) || strings.Contains(sitemap, ids[1]) {
		t.Fatalf("sitemap out of date:\n%s", sitemap)
	}

	resp = suite.do(t, suite.public, http.MethodDelete, "/admin/api/photos/"+ids[0], "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous delete should be rejected, got %d", resp.StatusCode)
	}
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:e2e?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if err := db.EnsureUser(gdb, adminEmail, adminPass); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	uploadDir := t.TempDir()
	bucket, err := storage.NewLocalBucket(uploadDir, "/uploads")
	if err != nil {
		t.Fatalf("failed to open bucket: %v", err)
	}

	photos := service.NewPhotoService(gdb, bucket, service.PhotoServiceOptions{
		AuthorName:     "Amrit Kumar Chanchal",
		RequireAltText: true,
	})
	hub := feed.NewHub(photos, nil)
	photos.SetNotifier(hub)

	api := handler.NewAPI(handler.Deps{
		DB:       gdb,
		Photos:   photos,
		Settings: service.NewSiteSettingService(gdb, bucket, service.SiteSettings{}, nil),
		Auth:     service.NewAuthService(gdb, adminEmail),
		Sitemap:  service.NewSitemapService(photos, "http://example.test", authorSlug, 20),
		Hub:      hub,
		Site: handler.SiteInfo{
			AuthorName: "Amrit Kumar Chanchal",
			AuthorSlug: authorSlug,
			SiteName:   "Amrit's Album",
			BaseURL:    "http://example.test",
		},
	})

	engine := router.SetupRouter(api, router.Options{
		SessionSecret: "test-session-secret",
		UploadDir:     uploadDir,
		UploadURLPath: "/uploads",
		AuthorSlug:    authorSlug,
	})
	server := httptest.NewServer(engine)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}

	suite := &e2eSuite{
		server:    server,
		admin:     &http.Client{Jar: jar, Timeout: 5 * time.Second},
		public:    &http.Client{Timeout: 5 * time.Second},
		uploadDir: uploadDir,
	}
	t.Cleanup(func() {
		if suite.feed != nil {
			suite.feed.Close()
		}
		server.Close()
		api.Close()
		hub.Close()
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return suite
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, adminEmail, adminPass)
	resp := s.do(t, s.admin, http.MethodPost, "/admin/api/login", "application/json", strings.NewReader(body))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed, status %d", resp.StatusCode)
	}
}

func (s *e2eSuite) openFeed(t *testing.T) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/photos?limit=10"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	s.feed = conn
}

// nextSnapshot reads frames until one satisfies match. Intermediate snapshots may be skipped
// by the server, so only the final state is asserted.
func (s *e2eSuite) nextSnapshot(t *testing.T, match func([]db.Photo) bool) []db.Photo {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		s.feed.SetReadDeadline(deadline)
		var msg feed.Message
		if err := s.feed.ReadJSON(&msg); err != nil {
			t.Fatalf("read feed: %v", err)
		}
		if msg.Type != feed.MessageSnapshot {
			t.Fatalf("unexpected frame %+v", msg)
		}
		if match(msg.Photos) {
			return msg.Photos
		}
	}
}

func (s *e2eSuite) uploadBatch(t *testing.T) []string {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":       "Rara Lake",
		"category":    "Landscape",
		"altText":     "Blue lake under clouds",
		"location":    "Mugu, Nepal",
		"postingDate": "2024-03-10",
		"postingTime": "07:15",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, name := range []string{"rara-1.png", "rara-2.png"} {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, name))
		header.Set("Content-Type", "image/png")
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(pngBytes(t)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	w.Close()

	resp := s.do(t, s.admin, http.MethodPost, "/admin/api/photos", w.FormDataContentType(), &buf)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload failed with %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var report struct {
		Items []struct {
			Photo *db.Photo `json:"photo"`
			Error string    `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	ids := make([]string, 0, len(report.Items))
	for _, item := range report.Items {
		if item.Photo == nil {
			t.Fatalf("upload item failed: %s", item.Error)
		}
		ids = append(ids, item.Photo.ID)
	}
	return ids
}

func (s *e2eSuite) do(t *testing.T, client *http.Client, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) getJSON(t *testing.T, client *http.Client, path string, dst interface{}) {
	t.Helper()
	resp := s.do(t, client, http.MethodGet, path, "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func (s *e2eSuite) getJSONField(t *testing.T, path, field string, dst interface{}) {
	t.Helper()
	var raw map[string]json.RawMessage
	s.getJSON(t, s.public, path, &raw)
	if err := json.Unmarshal(raw[field], dst); err != nil {
		t.Fatalf("decode %s.%s: %v", path, field, err)
	}
}

func (s *e2eSuite) getText(t *testing.T, client *http.Client, path string, code int) string {
	t.Helper()
	resp := s.do(t, client, http.MethodGet, path, "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != code {
		t.Fatalf("GET %s: expected %d, got %d", path, code, resp.StatusCode)
	}
	return readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
