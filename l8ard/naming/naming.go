// Package naming derives the deterministic storage keys of Landsat source assets
// and published ARD rasters.
package naming

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/go-l8ard/l8ard/band"
	"github.com/example/go-l8ard/l8ard/model"
)

const (
	// SourceBucket is the USGS requester-pays bucket holding Collection-2 products.
	SourceBucket = "usgs-landsat"
	sourceRoot   = "collection02/level-2/standard/oli-tirs"
	vsiS3Prefix  = "/vsis3/"

	// folderLevel is the processing level label used for the product directory.
	folderLevel = "L1T"
	// dayEnd is the time suffix appended to acquisition dates in output names.
	dayEnd = "T235959"
)

// SourceKey returns the object key of one band asset of a product inside SourceBucket.
func SourceKey(productID string, code band.Code) (string, error) {
	d, err := band.DescriptorFor(code)
	if err != nil {
		return "", err
	}
	id, err := model.ParseProductID(productID)
	if err != nil {
		return "", err
	}
	return path.Join(sourceRoot, id.Year(), id.Path, id.Row, id.Raw, id.Raw+"_"+d.SourceItem+".TIF"), nil
}

// SourceURI returns the GDAL virtual file system path of a source key.
func SourceURI(key string) string {
	return vsiS3Prefix + SourceBucket + "/" + strings.TrimPrefix(key, "/")
}

// OutputKey returns the published path of the ARD raster produced for a band of the
// group whose reference product is referenceID, on tile tileID. It is a pure function.
func OutputKey(referenceID string, code band.Code, tileID string) (string, error) {
	d, err := band.DescriptorFor(code)
	if err != nil {
		return "", err
	}
	if err := model.ValidateTileID(tileID); err != nil {
		return "", err
	}
	id, err := model.ParseProductID(referenceID)
	if err != nil {
		return "", err
	}
	day := id.AcquisitionDay()
	stamp := day + dayEnd
	unique := id.UniqueID()
	dir := strings.Join([]string{id.Platform, folderLevel, stamp, unique, tileID}, "_")
	name := strings.Join([]string{id.Platform, id.ProcessingLevel, stamp, unique, tileID, d.Alias}, "_") + ".tif"
	return path.Join(
		d.Class.Segment(),
		tileID[:2], tileID[2:3], tileID[3:],
		id.Year(), day,
		dir, name,
	), nil
}

// PublishKey prefixes an output key with the production identifier.
func PublishKey(productionID, outputKey string) string {
	if productionID == "" {
		return outputKey
	}
	return path.Join(productionID, outputKey)
}

// DirCreator creates the local destination directory of each output key at most once
// per run. It is safe for concurrent use.
type DirCreator struct {
	mu      sync.Mutex
	created map[string]struct{}
}

// NewDirCreator returns an empty DirCreator.
func NewDirCreator() *DirCreator {
	return &DirCreator{created: make(map[string]struct{})}
}

// Create makes the parent directory of outputKey below root and returns it.
// A second call for the same key fails with model.ErrAlreadyExists.
func (c *DirCreator) Create(root, outputKey string) (string, error) {
	dir := filepath.Join(root, filepath.FromSlash(path.Dir(outputKey)))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.created[outputKey]; ok {
		return "", &os.PathError{Op: "mkdir", Path: dir, Err: model.ErrAlreadyExists}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	c.created[outputKey] = struct{}{}
	return dir, nil
}
