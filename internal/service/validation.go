package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/photofolio/internal/taxonomy"
)

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return taxonomy.IsValid(fl.Field().String())
	})
	v.RegisterValidation("supported_image", func(fl validator.FieldLevel) bool {
		return supportedImageTypes[fl.Field().String()]
	})
	return v
}

// photoForm is the normalized metadata shared by uploads and edits.
type photoForm struct {
	Title    string `validate:"required,max=200"`
	Category string `validate:"required,category"`
	AltText  string `validate:"max=500"`
}

type uploadFileForm struct {
	ContentType string `validate:"supported_image"`
}

type uploadForm struct {
	photoForm
	Files []uploadFileForm `validate:"min=1,dive"`
}

var fieldMessages = map[string]map[string]string{
	"Title": {
		"required": "Please enter a title.",
		"max":      "Title is too long.",
	},
	"Category": {
		"required": "Please choose a category.",
		"category": "Please choose a category from the list.",
	},
	"AltText": {
		"max": "Alt text is too long.",
	},
	"Files": {
		"min": "Please select at least one photo.",
	},
	"ContentType": {
		"supported_image": "Only JPEG, PNG, GIF and WebP images are supported.",
	},
}

// toValidationError turns the first validator failure into a field-specific message.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	field := first.StructField()
	msg := fieldMessages[field][first.Tag()]
	if msg == "" {
		msg = "Invalid value."
	}
	return &ValidationError{Field: lowerFirst(field), Message: msg}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
