package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrData marks malformed or missing input data. Not recoverable locally.
	ErrData = errors.New("data error")
	// ErrInsufficientHistory marks a per-asset statistic that cannot be computed from
	// the available events. Callers substitute the documented sentinel.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrModelUnavailable marks a scoring call that found no model and could not train one.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrSchemaMismatch marks a feature vector whose columns differ from the model contract.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// DataError describes a bad input value. Row is 1-based within its table, 0 when not row specific.
type DataError struct {
	Table  string
	Column string
	Row    int
	Err    error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString("data error")
	if e.Table != "" {
		fmt.Fprintf(&b, ": table %s", e.Table)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %s", e.Column)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrData) match any DataError.
func (e *DataError) Is(target error) bool { return target == ErrData }

// ModelUnavailableError carries the training failure that left the scorer without a model.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: training failed: %v", e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// SchemaMismatchError reports the column order recorded in the artifact and the one offered.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: model expects [%s], got [%s]",
		strings.Join(e.Expected, ","), strings.Join(e.Got, ","))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }
