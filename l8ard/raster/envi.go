package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ENVI data type codes.
var enviTypes = map[int]DataType{
	1:  Byte,
	2:  Int16,
	3:  Int32,
	4:  Float32,
	5:  Float64,
	12: UInt16,
	13: UInt32,
}

var georefKeys = []string{"map info", "coordinate system string", "projection info"}

type enviHeader struct {
	samples      int
	lines        int
	bands        int
	headerOffset int
	dataType     DataType
	interleave   string
	byteOrder    binary.ByteOrder
	nodata       *float64
	fields       map[string]string
}

func parseENVIHeader(r io.Reader) (enviHeader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "ENVI" {
		return enviHeader{}, errors.New("raster: not an ENVI header")
	}
	fields := make(map[string]string)
	var key, pending string
	for sc.Scan() {
		line := sc.Text()
		if key != "" {
			pending += "\n" + line
			if strings.Contains(line, "}") {
				fields[key] = pending
				key, pending = "", ""
			}
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "{") && !strings.Contains(v, "}") {
			key, pending = k, v
			continue
		}
		fields[k] = v
	}
	if err := sc.Err(); err != nil {
		return enviHeader{}, err
	}
	if key != "" {
		return enviHeader{}, fmt.Errorf("raster: unterminated ENVI field %q", key)
	}

	h := enviHeader{fields: fields, interleave: "bsq", byteOrder: binary.LittleEndian}
	ints := []struct {
		name     string
		dst      *int
		required bool
	}{
		{"samples", &h.samples, true},
		{"lines", &h.lines, true},
		{"bands", &h.bands, true},
		{"header offset", &h.headerOffset, false},
	}
	for _, f := range ints {
		raw, ok := fields[f.name]
		if !ok {
			if f.required {
				return enviHeader{}, fmt.Errorf("raster: ENVI header missing %q", f.name)
			}
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return enviHeader{}, fmt.Errorf("raster: ENVI %s: %w", f.name, err)
		}
		*f.dst = n
	}
	code, err := strconv.Atoi(fields["data type"])
	if err != nil {
		return enviHeader{}, fmt.Errorf("raster: ENVI data type: %w", err)
	}
	dt, ok := enviTypes[code]
	if !ok {
		return enviHeader{}, fmt.Errorf("raster: unsupported ENVI data type %d", code)
	}
	h.dataType = dt
	if v, ok := fields["interleave"]; ok {
		h.interleave = strings.ToLower(v)
	}
	if fields["byte order"] == "1" {
		h.byteOrder = binary.BigEndian
	}
	if v, ok := fields["data ignore value"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return enviHeader{}, fmt.Errorf("raster: ENVI data ignore value: %w", err)
		}
		h.nodata = &f
	}
	return h, nil
}

func typeSize(dt DataType) int {
	switch dt {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func enviCode(dt DataType) (int, bool) {
	for code, candidate := range enviTypes {
		if candidate == dt {
			return code, true
		}
	}
	return 0, false
}

// readENVI loads a single band ENVI raster.
func readENVI(hdrPath, rawPath string) (*Grid, error) {
	f, err := os.Open(hdrPath)
	if err != nil {
		return nil, err
	}
	h, err := parseENVIHeader(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	if h.bands != 1 {
		return nil, fmt.Errorf("raster: expected a single band, got %d", h.bands)
	}
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, err
	}
	size := typeSize(h.dataType)
	n := h.samples * h.lines
	if len(data) < h.headerOffset+n*size {
		return nil, fmt.Errorf("raster: %s holds %d bytes, expected %d", rawPath, len(data), h.headerOffset+n*size)
	}
	data = data[h.headerOffset:]

	g := &Grid{
		Width:    h.samples,
		Height:   h.lines,
		DataType: h.dataType,
		Pixels:   make([]float64, n),
		Nodata:   h.nodata,
		Georef:   make(map[string]string),
	}
	for _, k := range georefKeys {
		if v, ok := h.fields[k]; ok {
			g.Georef[k] = v
		}
	}
	bo := h.byteOrder
	for i := 0; i < n; i++ {
		b := data[i*size : (i+1)*size]
		switch h.dataType {
		case Byte:
			g.Pixels[i] = float64(b[0])
		case Int16:
			g.Pixels[i] = float64(int16(bo.Uint16(b)))
		case UInt16:
			g.Pixels[i] = float64(bo.Uint16(b))
		case Int32:
			g.Pixels[i] = float64(int32(bo.Uint32(b)))
		case UInt32:
			g.Pixels[i] = float64(bo.Uint32(b))
		case Float32:
			g.Pixels[i] = float64(math.Float32frombits(bo.Uint32(b)))
		case Float64:
			g.Pixels[i] = math.Float64frombits(bo.Uint64(b))
		}
	}
	return g, nil
}

// writeENVI stores g as a little endian ENVI raster and returns the header path.
func writeENVI(g *Grid, rawPath string, nodata *float64) (string, error) {
	code, ok := enviCode(g.DataType)
	if !ok {
		return "", fmt.Errorf("raster: unsupported data type %q", g.DataType)
	}
	if len(g.Pixels) != g.Len() {
		return "", fmt.Errorf("raster: grid holds %d pixels, expected %d", len(g.Pixels), g.Len())
	}
	size := typeSize(g.DataType)
	buf := make([]byte, len(g.Pixels)*size)
	le := binary.LittleEndian
	for i, v := range g.Pixels {
		b := buf[i*size : (i+1)*size]
		switch g.DataType {
		case Byte:
			b[0] = uint8(v)
		case Int16:
			le.PutUint16(b, uint16(int16(v)))
		case UInt16:
			le.PutUint16(b, uint16(v))
		case Int32:
			le.PutUint32(b, uint32(int32(v)))
		case UInt32:
			le.PutUint32(b, uint32(v))
		case Float32:
			le.PutUint32(b, math.Float32bits(float32(v)))
		case Float64:
			le.PutUint64(b, math.Float64bits(v))
		}
	}
	if err := os.WriteFile(rawPath, buf, 0o644); err != nil {
		return "", err
	}

	var hdr strings.Builder
	hdr.WriteString("ENVI\n")
	fmt.Fprintf(&hdr, "samples = %d\nlines = %d\nbands = 1\nheader offset = 0\n", g.Width, g.Height)
	fmt.Fprintf(&hdr, "file type = ENVI Standard\ndata type = %d\ninterleave = bsq\nbyte order = 0\n", code)
	keys := make([]string, 0, len(g.Georef))
	for k := range g.Georef {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&hdr, "%s = %s\n", k, g.Georef[k])
	}
	if nodata != nil {
		fmt.Fprintf(&hdr, "data ignore value = %s\n", formatFloat(*nodata))
	}
	hdrPath := headerPath(rawPath)
	if err := os.WriteFile(hdrPath, []byte(hdr.String()), 0o644); err != nil {
		return "", err
	}
	return hdrPath, nil
}

func headerPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".hdr"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
