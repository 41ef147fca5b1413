package utils

import (
	"errors"
	"fmt"
)

var (
	ErrorRecordNotFound   = errors.New("record not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidSpec        = errors.New("invalid house plan spec")
	ErrInvalidGeometry    = errors.New("invalid geometry")
	ErrUnknownMaterial    = errors.New("unknown material")
	ErrRenderFailure      = errors.New("floor plan not available")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrArtifactNotFound   = errors.New("artifact not found")
)

const (
	ErrCodeInvalidSpec     = "INVALID_SPEC"
	ErrCodeInvalidGeometry = "INVALID_GEOMETRY"
	ErrCodeUnknownMaterial = "UNKNOWN_MATERIAL"
)

// SpecError is a rejected input, always naming the offending field.
// It matches ErrInvalidSpec and its own Kind with errors.Is.
type SpecError struct {
	Kind    error
	Field   string
	Message string
}

func (e *SpecError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *SpecError) Unwrap() []error {
	if e.Kind == nil || e.Kind == ErrInvalidSpec {
		return []error{ErrInvalidSpec}
	}
	return []error{e.Kind, ErrInvalidSpec}
}

func (e *SpecError) Code() string {
	switch e.Kind {
	case ErrInvalidGeometry:
		return ErrCodeInvalidGeometry
	case ErrUnknownMaterial:
		return ErrCodeUnknownMaterial
	default:
		return ErrCodeInvalidSpec
	}
}

func NewInvalidSpec(field string, format string, args ...any) error {
	return &SpecError{Kind: ErrInvalidSpec, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidGeometry(field string, format string, args ...any) error {
	return &SpecError{Kind: ErrInvalidGeometry, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewUnknownMaterial(field string, format string, args ...any) error {
	return &SpecError{Kind: ErrUnknownMaterial, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsSpecError unwraps err into a *SpecError, if it is one.
func AsSpecError(err error) (*SpecError, bool) {
	var specErr *SpecError
	if errors.As(err, &specErr) {
		return specErr, true
	}
	return nil, false
}
