package ports

import "github.com/RCXD/Bros-back/domain/models"

// ImageInfo is what can be learned from an image header without a full decode.
type ImageInfo struct {
	Format string // jpeg, png, gif, webp
	Ext    string // canonical extension for Format
	Width  int
	Height int
}

// CompressResult is an encoded image plus how it was produced.
type CompressResult struct {
	Data      []byte
	Format    string
	Ext       string
	Width     int
	Height    int
	Quality   int
	BudgetMet bool
}

func (r *CompressResult) Size() int64 {
	return int64(len(r.Data))
}

// CompressorPort fits images into a category's rule. It is synchronous and
// CPU bound; callers bound it with their own deadlines.
type CompressorPort interface {
	// Probe reads only the header. Unreadable input yields models.ErrEncodeFailure.
	Probe(data []byte) (*ImageInfo, error)

	// Compress may change the output format when the input format has no encoder.
	Compress(data []byte, category models.ImageCategory) (*CompressResult, error)

	// Recompress keeps the given extension or fails.
	Recompress(data []byte, category models.ImageCategory, ext string) (*CompressResult, error)
}
