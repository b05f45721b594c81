package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/feed"
	"github.com/photofolio/internal/service"
	"github.com/photofolio/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testAdminEmail = "owner@example.com"
	testGuestEmail = "guest@example.com"
	testPassword   = "secret"
	testAuthorSlug = "amrit-kumar-chanchal"
)

var testDBSeq atomic.Int64

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// the feed reads from its own goroutines; one connection keeps shared-cache sqlite from
	// reporting table locks
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	for _, email := range []string{testAdminEmail, testGuestEmail} {
		if err := db.EnsureUser(gdb, email, testPassword); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// failingDeleteBucket stores blobs on disk but refuses to delete them.
type failingDeleteBucket struct {
	*storage.LocalBucket
}

func (b failingDeleteBucket) Delete(context.Context, string) error {
	return errors.New("permission denied")
}

type testEnv struct {
	api    *API
	engine *gin.Engine
	db     *gorm.DB
	photos *service.PhotoService
}

type testEnvOptions struct {
	bucket storage.Bucket
	hub    bool
}

func newTestEnv(t *testing.T, opts testEnvOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := setupHandlerTestDB(t)
	bucket := opts.bucket
	if bucket == nil {
		local, err := storage.NewLocalBucket(t.TempDir(), "/uploads")
		if err != nil {
			t.Fatalf("failed to open local bucket: %v", err)
		}
		bucket = local
	}

	photos := service.NewPhotoService(gdb, bucket, service.PhotoServiceOptions{
		AuthorName:     "Amrit Kumar Chanchal",
		RequireAltText: true,
		MaxUploadBytes: 1 << 20,
		Now:            func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})

	deps := Deps{
		DB:       gdb,
		Photos:   photos,
		Settings: service.NewSiteSettingService(gdb, bucket, service.SiteSettings{ProfilePhotoURL: "https://placehold.co/400.png", HeroBackdropURL: "https://placehold.co/1920.png"}, nil),
		Auth:     service.NewAuthService(gdb, testAdminEmail),
		Sitemap:  service.NewSitemapService(photos, "https://pics.example.com", testAuthorSlug, 20),
		Site: SiteInfo{
			AuthorName: "Amrit Kumar Chanchal",
			AuthorSlug: testAuthorSlug,
			SiteName:   "Amrit's Album",
			BaseURL:    "https://pics.example.com",
		},
	}
	if opts.hub {
		hub := feed.NewHub(photos, nil)
		photos.SetNotifier(hub)
		deps.Hub = hub
		t.Cleanup(hub.Close)
	}

	api := NewAPI(deps)
	t.Cleanup(api.Close)

	return &testEnv{api: api, engine: newTestEngine(api), db: gdb, photos: photos}
}

func newTestEngine(api *API) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("photofolio_session", cookie.NewStore([]byte("test-secret"))))
	r.SetHTMLTemplate(Templates())

	r.GET("/healthz", api.HealthCheck)
	r.GET("/sitemap.xml", api.Sitemap)
	r.GET("/robots.txt", api.Robots)
	r.GET("/"+testAuthorSlug+"/photo/:id", api.ShowPhotoPage)
	r.GET("/api/photos", api.ListPhotos)
	r.GET("/api/photos/:id", api.GetPhoto)
	r.GET("/api/highlights", api.ListHighlights)
	r.GET("/api/categories", api.ListCategories)
	r.GET("/api/settings", api.GetSiteSettings)

	r.POST("/admin/api/login", api.Login)
	r.POST("/admin/api/logout", api.Logout)
	r.GET("/admin/api/session", api.Session)
	auth := r.Group("/admin/api", api.AdminRequired())
	auth.GET("/ping", api.CountPhotos)
	auth.GET("/photos", api.AdminListPhotos)
	auth.POST("/photos", api.UploadPhotos)
	auth.PUT("/photos/:id", api.UpdatePhoto)
	auth.DELETE("/photos/:id", api.DeletePhoto)
	auth.POST("/settings/:asset", api.UpdateSiteAsset)
	auth.DELETE("/settings/:asset", api.ResetSiteAsset)
	return r
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, email string) []*http.Cookie {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, testPassword)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := e.do(t, req, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", email, rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

type testFile struct {
	field       string
	name        string
	contentType string
	content     []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files []testFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		header.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func memUpload(t *testing.T, name string) service.UploadFile {
	content := pngBytes(t, 1, 1)
	return service.UploadFile{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
