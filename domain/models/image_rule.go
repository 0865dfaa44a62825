package models

import "strings"

type ImageCategory string

const (
	CategoryProfile  ImageCategory = "profile"
	CategoryPost     ImageCategory = "post"
	CategoryReply    ImageCategory = "reply"
	CategoryEmoticon ImageCategory = "emoticon"
	CategoryDefault  ImageCategory = "default"
)

const (
	DefaultQuality = 85
	QualityFloor   = 30
	QualityStep    = 10
)

// ImageRule is the per-category compression budget. Zero MaxWidth and
// MaxHeight mean the category has no dimension limit.
type ImageRule struct {
	MaxWidth  int
	MaxHeight int
	MaxBytes  int64
	Quality   int
}

// HasDimensionLimit reports whether the rule bounds pixel dimensions.
func (r ImageRule) HasDimensionLimit() bool {
	return r.MaxWidth > 0 && r.MaxHeight > 0
}

const kb = 1024

var imageRules = map[ImageCategory]ImageRule{
	CategoryProfile:  {MaxWidth: 300, MaxHeight: 300, MaxBytes: 500 * kb, Quality: DefaultQuality},
	CategoryPost:     {MaxBytes: 10 * kb * kb, Quality: DefaultQuality},
	CategoryReply:    {MaxWidth: 960, MaxHeight: 600, MaxBytes: 3 * kb * kb, Quality: DefaultQuality},
	CategoryEmoticon: {MaxWidth: 128, MaxHeight: 128, MaxBytes: 500 * kb, Quality: DefaultQuality},
	CategoryDefault:  {MaxWidth: 1024, MaxHeight: 1024, MaxBytes: 2 * kb * kb, Quality: DefaultQuality},
}

// RuleFor never fails; unknown categories get the default rule.
func RuleFor(category ImageCategory) ImageRule {
	if rule, ok := imageRules[category]; ok {
		return rule
	}
	return imageRules[CategoryDefault]
}

// ParseCategory normalises user input. Unknown names map to CategoryDefault.
func ParseCategory(s string) ImageCategory {
	c := ImageCategory(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := imageRules[c]; ok {
		return c
	}
	return CategoryDefault
}

func (c ImageCategory) String() string {
	return string(c)
}
