package db

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPhotoTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:photo-model-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestPhotoCreateAssignsIDAndRoundTripsTags(t *testing.T) {
	gdb := setupPhotoTestDB(t)

	photo := Photo{
		Name:     "Sunset",
		Category: "Travel",
		ImageURL: "https://cdn.example.com/photos/sunset.jpg",
		Tags:     StringList{"beach", "golden hour"},
	}
	if err := gdb.Create(&photo).Error; err != nil {
		t.Fatalf("failed to create photo: %v", err)
	}
	if photo.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if photo.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be assigned")
	}
	if photo.UpdatedAt != nil {
		t.Fatal("expected updated_at to stay empty on create")
	}

	var loaded Photo
	if err := gdb.First(&loaded, "id = ?", photo.ID).Error; err != nil {
		t.Fatalf("failed to load photo: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "beach" || loaded.Tags[1] != "golden hour" {
		t.Fatalf("unexpected tags: %#v", loaded.Tags)
	}
	if loaded.Caption != nil || loaded.Location != nil || loaded.Description != nil {
		t.Fatal("expected optional fields to be absent")
	}
}

func TestPhotoNilTagsStoredAsNull(t *testing.T) {
	gdb := setupPhotoTestDB(t)

	photo := Photo{Name: "No tags", Category: "Work", ImageURL: "https://cdn.example.com/a.jpg"}
	if err := gdb.Create(&photo).Error; err != nil {
		t.Fatalf("failed to create photo: %v", err)
	}

	var nullCount int64
	if err := gdb.Model(&Photo{}).Where("id = ? AND tags IS NULL", photo.ID).Count(&nullCount).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if nullCount != 1 {
		t.Fatalf("expected tags column to be NULL")
	}
}

func TestPhotoLastModified(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	photo := Photo{CreatedAt: created}
	if !photo.LastModified().Equal(created) {
		t.Fatalf("expected created time when never updated")
	}

	updated := created.Add(48 * time.Hour)
	photo.UpdatedAt = &updated
	if !photo.LastModified().Equal(updated) {
		t.Fatalf("expected updated time once edited")
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("   ") != nil {
		t.Fatal("expected blank value to become nil")
	}
	if got := StringPtr("  Patna "); got == nil || *got != "Patna" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
}
