package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseProductID(t *testing.T) {
	id, err := ParseProductID("LC08_L2SP_199029_20211216_20211223_02_T1")
	if err != nil {
		t.Fatalf("ParseProductID returned error: %v", err)
	}
	if id.Platform != "LC08" || id.ProcessingLevel != "L2SP" {
		t.Fatalf("unexpected platform/level: %+v", id)
	}
	if id.Path != "199" || id.Row != "029" || id.PathRow != "199029" {
		t.Fatalf("unexpected path/row: %+v", id)
	}
	if !id.AcquisitionDate.Equal(time.Date(2021, 12, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected acquisition date: %s", id.AcquisitionDate)
	}
	if id.AcquisitionDay() != "20211216" || id.Year() != "2021" {
		t.Fatalf("unexpected day/year: %s %s", id.AcquisitionDay(), id.Year())
	}
	if id.UniqueID() != "19902902T1" {
		t.Fatalf("unexpected unique id: %s", id.UniqueID())
	}
}

func TestParseProductIDStripsKeyAndSuffix(t *testing.T) {
	raw := "s3://usgs-landsat/collection02/level-2/standard/oli-tirs/2019/200/035/LC08_L2SP_200035_20190321_20200829_02_T1/LC08_L2SP_200035_20190321_20200829_02_T1_ST_B10.TIF"
	id, err := ParseProductID(raw)
	if err != nil {
		t.Fatalf("ParseProductID returned error: %v", err)
	}
	if id.String() != "LC08_L2SP_200035_20190321_20200829_02_T1" {
		t.Fatalf("unexpected canonical id: %s", id)
	}
}

func TestParseProductIDErrors(t *testing.T) {
	cases := []string{
		"",
		"LC08_L2SP_199029",
		"LC08_L2SP_1990_20211216_20211223_02_T1",
		"LC08_L2SP_199029_2021121X_20211223_02_T1",
		"LC08_L2SP_199029_20211216_notadate_02_T1",
	}
	for _, tc := range cases {
		if _, err := ParseProductID(tc); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected configuration error for %q, got %v", tc, err)
		}
	}
}

func TestBBoxFromUpperLeft(t *testing.T) {
	ctx := TileContext{TileID: "31TCJ", CRS: "EPSG:32631", BBox: BBoxFromUpperLeft(300000, 4900020)}
	got := ctx.Extent()
	want := [4]float64{300000, 4790220, 409800, 4900020}
	if got != want {
		t.Fatalf("unexpected extent: got %v want %v", got, want)
	}
}

func TestValidateTileID(t *testing.T) {
	for _, ok := range []string{"31TCJ", "30SVG", "01CAA"} {
		if err := ValidateTileID(ok); err != nil {
			t.Fatalf("expected %s to be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "31TC", "T31TCJ", "3XTCJ", "31tcj"} {
		if err := ValidateTileID(bad); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected configuration error for %q, got %v", bad, err)
		}
	}
}

func TestBandErrorUnwrap(t *testing.T) {
	cause := errors.New("gdalwarp exited 1")
	err := error(&BandError{Band: "B2", Stage: StageReproject, Kind: ErrProcessing, Err: cause, Group: []string{"a", "b"}})
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if got := err.Error(); got != "band B2 (reproject): processing failure: gdalwarp exited 1 [group a,b]" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestBatchError(t *testing.T) {
	batch := BatchError{Errors: []error{Configf("bad tile"), ErrTileNotFound}}
	if !errors.Is(batch, ErrTileNotFound) || !errors.Is(batch, ErrConfiguration) {
		t.Fatalf("expected both sentinels in batch: %v", batch)
	}
	if batch.Error() != "configuration error: bad tile; tile not found" {
		t.Fatalf("unexpected message: %s", batch.Error())
	}
}
