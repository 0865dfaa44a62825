package imagecodec

import (
	exif "github.com/dsoprea/go-exif/v3"
)

const orientationTag = "Orientation"

// exifOrientation returns the EXIF orientation of a JPEG, 1 when absent or
// unreadable.
func exifOrientation(data []byte) int {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || len(raw) == 0 {
		return 1
	}
	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 1
	}
	for _, tag := range tags {
		if tag.TagName != orientationTag {
			continue
		}
		if v, ok := tag.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	}
	return 1
}

// swapsAxes reports whether displaying with orientation o transposes the image.
func swapsAxes(o int) bool {
	return o >= 5 && o <= 8
}
