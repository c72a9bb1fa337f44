package raster

import (
	"strings"
	"time"
)

// ImageDescription is written into every ARD raster.
const ImageDescription = "EWoC Landsat-8 ARD"

// Tags builds the GeoTIFF metadata of an ARD raster.
func Tags(acquired, written time.Time, software string, sources []string) map[string]string {
	return map[string]string{
		"ACQUISITION_DATETIME":     acquired.Format("2006-01-02"),
		"TIFFTAG_DATETIME":         written.Format("2006-01-02 15:04:05"),
		"TIFFTAG_IMAGEDESCRIPTION": ImageDescription,
		"TIFFTAG_SOFTWARE":         software,
		"SOURCE_PRODUCTS":          strings.Join(sources, ","),
	}
}
