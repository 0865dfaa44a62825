package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestRuleFor(t *testing.T) {
	tests := []struct {
		category  ImageCategory
		wantW     int
		wantH     int
		wantBytes int64
	}{
		{CategoryProfile, 300, 300, 500 * 1024},
		{CategoryPost, 0, 0, 10 * 1024 * 1024},
		{CategoryReply, 960, 600, 3 * 1024 * 1024},
		{CategoryEmoticon, 128, 128, 500 * 1024},
		{CategoryDefault, 1024, 1024, 2 * 1024 * 1024},
		{ImageCategory("banner"), 1024, 1024, 2 * 1024 * 1024},
		{ImageCategory(""), 1024, 1024, 2 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			rule := RuleFor(tt.category)
			if rule.MaxWidth != tt.wantW || rule.MaxHeight != tt.wantH || rule.MaxBytes != tt.wantBytes {
				t.Errorf("RuleFor(%q) = %+v", tt.category, rule)
			}
			if rule.Quality != DefaultQuality {
				t.Errorf("Quality = %d, want %d", rule.Quality, DefaultQuality)
			}
		})
	}
}

func TestPostRuleUnbounded(t *testing.T) {
	if RuleFor(CategoryPost).HasDimensionLimit() {
		t.Error("post rule should have no dimension limit")
	}
	if !RuleFor(CategoryReply).HasDimensionLimit() {
		t.Error("reply rule should have a dimension limit")
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]ImageCategory{
		"profile":   CategoryProfile,
		" POST ":    CategoryPost,
		"Emoticon":  CategoryEmoticon,
		"wallpaper": CategoryDefault,
		"":          CategoryDefault,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnsupportedFormatErrorIs(t *testing.T) {
	err := fmt.Errorf("upload: %w", &UnsupportedFormatError{Ext: "bmp"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatal("expected errors.Is to match ErrUnsupportedFormat")
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) || ufe.Ext != "bmp" {
		t.Errorf("errors.As = %v, ext %q", ufe, ufe.Ext)
	}
}

func TestImageRecordPathConsistent(t *testing.T) {
	id := uuid.New()
	rec := &ImageRecord{ExternalID: id, Ext: "jpg", Path: "post_images/2024-05-01/" + id.String() + ".jpg"}
	if !rec.PathConsistent() {
		t.Error("expected consistent path")
	}
	rec.Ext = "png"
	if rec.PathConsistent() {
		t.Error("expected inconsistent path after ext change")
	}
}
