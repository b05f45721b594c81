package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Photo is one published image.
type Photo struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Category    string     `gorm:"size:100;index;not null" json:"category"`
	ImageURL    string     `gorm:"not null" json:"src"`
	StoragePath string     `json:"-"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	AltText     *string    `json:"altText,omitempty"`
	Caption     *string    `json:"caption,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Tags        StringList `gorm:"type:json" json:"tags,omitempty"`
	PostingDate *time.Time `json:"postingDate,omitempty"`
	ImageWidth  int        `json:"width,omitempty"`
	ImageHeight int        `json:"height,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt,omitempty"`
}

// BeforeCreate assigns the opaque identifier.
func (p *Photo) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// LastModified is the update time when present, otherwise the creation time.
func (p Photo) LastModified() time.Time {
	if p.UpdatedAt != nil && !p.UpdatedAt.IsZero() {
		return *p.UpdatedAt
	}
	return p.CreatedAt
}

// StringList stores an ordered list of strings as a JSON array column.
// A nil list is stored as NULL.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported tags column type %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*l = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return errors.Join(errors.New("decode tags column"), err)
	}
	*l = items
	return nil
}

// StringPtr returns nil for blank values and a pointer to the trimmed value otherwise.
func StringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Deref returns the pointed-to string or "".
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
