package band

import (
	"strings"

	"github.com/example/go-l8ard/l8ard/model"
)

// Mode selects which subset of bands a group run produces.
type Mode int

const (
	ModeDefault Mode = iota
	ModeSROnly
	ModeSRMaskOnly
	ModeTIROnly
)

// String returns the flag-style name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeSROnly:
		return "sr-only"
	case ModeSRMaskOnly:
		return "sr-mask-only"
	case ModeTIROnly:
		return "tir-only"
	}
	return "unknown"
}

// ParseMode converts a mode name into a Mode. The empty string selects the default mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "all":
		return ModeDefault, nil
	case "sr-only", "sr":
		return ModeSROnly, nil
	case "sr-mask-only", "sr-mask":
		return ModeSRMaskOnly, nil
	case "tir-only", "tir":
		return ModeTIROnly, nil
	}
	return ModeDefault, model.Configf("unknown processing mode %q", name)
}

// ModeFromFlags builds a Mode from the three mutually exclusive selection flags.
func ModeFromFlags(srOnly, srMaskOnly, tirOnly bool) (Mode, error) {
	var selected []string
	mode := ModeDefault
	if srOnly {
		selected = append(selected, ModeSROnly.String())
		mode = ModeSROnly
	}
	if srMaskOnly {
		selected = append(selected, ModeSRMaskOnly.String())
		mode = ModeSRMaskOnly
	}
	if tirOnly {
		selected = append(selected, ModeTIROnly.String())
		mode = ModeTIROnly
	}
	if len(selected) > 1 {
		return ModeDefault, model.Configf("mutually exclusive modes requested: %s", strings.Join(selected, ", "))
	}
	return mode, nil
}

// Bands returns the ordered band set processed in the given mode.
func Bands(mode Mode) ([]Code, error) {
	switch mode {
	case ModeSRMaskOnly:
		return []Code{QAPixelSR}, nil
	case ModeSROnly:
		return []Code{B2, B3, B4, B5, B6, B7, QAPixelSR}, nil
	case ModeTIROnly:
		return []Code{B10, QAPixelTIR}, nil
	case ModeDefault:
		return []Code{QAPixelTIR, B2, B3, B4, B5, B6, B7, B10, QAPixelSR}, nil
	}
	return nil, model.Configf("unknown processing mode %d", int(mode))
}
