package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid requests (mode conflicts, unknown bands, malformed tile ids).
	// It is raised before any I/O and is never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrInputUnavailable indicates that an expected source object is missing.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrProcessing wraps failures of reprojection, mosaic, clip, write or publish steps.
	ErrProcessing = errors.New("processing failure")
	// ErrScratchCleanup reports a scratch directory that could not be removed.
	ErrScratchCleanup = errors.New("scratch cleanup failure")
	// ErrAlreadyExists is returned when an output directory is created twice in one run.
	ErrAlreadyExists = errors.New("already exists")
	// ErrTileNotFound is returned by tile registries for unknown tile identifiers.
	ErrTileNotFound = errors.New("tile not found")
)

// Configf builds an ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Stage names the pipeline step a BandError happened in.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageCheck     Stage = "check"
	StageScratch   Stage = "scratch"
	StageReproject Stage = "reproject"
	StageMosaic    Stage = "mosaic"
	StageClip      Stage = "clip"
	StageFinish    Stage = "finish"
	StageWrite     Stage = "write"
	StagePublish   Stage = "publish"
)

// BandError describes why a single band of a product group produced no output.
type BandError struct {
	Band  string
	Group []string
	Stage Stage
	Kind  error
	Err   error
}

// Error implements the error interface.
func (e *BandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "band %s", e.Band)
	if e.Stage != "" {
		fmt.Fprintf(&b, " (%s)", e.Stage)
	}
	if e.Kind != nil {
		fmt.Fprintf(&b, ": %s", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	if len(e.Group) > 0 {
		fmt.Fprintf(&b, " [group %s]", strings.Join(e.Group, ","))
	}
	return b.String()
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *BandError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// BatchError aggregates several independent failures, e.g. per-tile errors of a plan.
type BatchError struct {
	Errors []error
}

// Error implements the error interface.
func (e BatchError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	messages := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}
	return strings.Join(messages, "; ")
}

// Unwrap allows errors.Is / errors.As to inspect every aggregated error.
func (e BatchError) Unwrap() []error {
	return e.Errors
}
