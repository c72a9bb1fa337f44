// Package workplan decodes the per-tile list of Landsat-8 product groups to turn into ARD.
package workplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tile lists the product groups of one Sentinel-2 tile. Each group is a set of
// Landsat-8 product identifiers acquired on the same day.
type Tile struct {
	L8Thermal [][]string `json:"L8_TIRS" yaml:"L8_TIRS"`
}

// Plan maps tile identifiers to their product groups.
type Plan map[string]Tile

// Load reads a plan from a .json, .yaml or .yml file.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workplan: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	}
	return DecodeJSON(data)
}

// DecodeJSON decodes a JSON plan. Unknown per-tile keys are ignored.
func DecodeJSON(data []byte) (Plan, error) {
	var p Plan
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("workplan: decode json: %w", err)
	}
	return p, nil
}

// DecodeYAML decodes a YAML plan.
func DecodeYAML(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("workplan: decode yaml: %w", err)
	}
	return p, nil
}

// Tiles returns the tile identifiers in sorted order.
func (p Plan) Tiles() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Groups returns the total number of product groups in the plan.
func (p Plan) Groups() int {
	n := 0
	for _, t := range p {
		n += len(t.L8Thermal)
	}
	return n
}
