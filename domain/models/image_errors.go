package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEncodeFailure     = errors.New("image could not be decoded or encoded")
	ErrBudgetUnmet       = errors.New("image exceeds byte budget at quality floor")
	ErrStorageWrite      = errors.New("image storage write failed")
	ErrMetadataCommit    = errors.New("image metadata commit failed")
	ErrImageNotFound     = errors.New("image not found")
	ErrImageForbidden    = errors.New("image belongs to another owner")
	ErrUploadTooLarge    = errors.New("upload exceeds the maximum size")
	ErrEmptyUpload       = errors.New("upload is empty")

	ErrDispatcherFull   = errors.New("compression queue is full")
	ErrDispatcherClosed = errors.New("compression dispatcher is shut down")
)

// UnsupportedFormatError carries the rejected extension and matches
// ErrUnsupportedFormat with errors.Is.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported image format: missing extension"
	}
	return fmt.Sprintf("unsupported image format: %q", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// BudgetPolicy decides what happens when compression bottoms out above the byte budget.
type BudgetPolicy string

const (
	BudgetBestEffort BudgetPolicy = "best_effort"
	BudgetStrict     BudgetPolicy = "strict"
)

func ParseBudgetPolicy(s string) BudgetPolicy {
	if BudgetPolicy(s) == BudgetStrict {
		return BudgetStrict
	}
	return BudgetBestEffort
}
