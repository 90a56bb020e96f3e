package domain

import (
	"fmt"
)

// Error codes carried in structured failure responses.
const (
	ErrCodeUnknownLabel      = "UNKNOWN_LABEL"
	ErrCodeInvalidCode       = "INVALID_CODE"
	ErrCodeCategoryNotFound  = "CATEGORY_MODEL_NOT_FOUND"
	ErrCodeArtifactLoad      = "ARTIFACT_LOAD_ERROR"
	ErrCodePredictionFailure = "PREDICTION_FAILURE"
	ErrCodeInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

// UnknownLabelError reports a categorical value that was never observed
// while fitting the encoder for that feature. This is a client-input
// problem, not an internal fault.
type UnknownLabelError struct {
	Feature string `json:"feature"`
	Label   string `json:"label"`
}

// Error implements the error interface.
func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown value %q for feature %q", e.Label, e.Feature)
}

// NewUnknownLabelError creates a new UnknownLabelError.
func NewUnknownLabelError(feature, label string) *UnknownLabelError {
	return &UnknownLabelError{Feature: feature, Label: label}
}

// InvalidCodeError reports a decode of an integer code outside the
// encoder's [0, N) range. It signals an internal invariant violation and
// should never reach a client.
type InvalidCodeError struct {
	Feature string `json:"feature"`
	Code    int    `json:"code"`
	Size    int    `json:"size"`
}

// Error implements the error interface.
func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("code %d out of range [0, %d) for feature %q", e.Code, e.Size, e.Feature)
}

// NewInvalidCodeError creates a new InvalidCodeError.
func NewInvalidCodeError(feature string, code, size int) *InvalidCodeError {
	return &InvalidCodeError{Feature: feature, Code: code, Size: size}
}

// CategoryModelNotFoundError reports that no trained bundle exists for the
// requested diagnostic category. Maps to a not-found response.
type CategoryModelNotFoundError struct {
	Category string `json:"category"`
	Slug     string `json:"slug"`
}

// Error implements the error interface.
func (e *CategoryModelNotFoundError) Error() string {
	return fmt.Sprintf("no trained model for category %q (slug %q)", e.Category, e.Slug)
}

// NewCategoryModelNotFoundError creates a new CategoryModelNotFoundError.
func NewCategoryModelNotFoundError(category, slug string) *CategoryModelNotFoundError {
	return &CategoryModelNotFoundError{Category: category, Slug: slug}
}

// ArtifactLoadError reports a missing or malformed model artifact file.
// Fatal at startup for the top-level bundle; recoverable as not-found for
// category bundles.
type ArtifactLoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("loading artifact %q: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// NewArtifactLoadError creates a new ArtifactLoadError.
func NewArtifactLoadError(path string, err error) *ArtifactLoadError {
	return &ArtifactLoadError{Path: path, Err: err}
}

// PredictionError reports an opaque classifier invocation failure, e.g. a
// feature-vector shape mismatch against the loaded artifact.
type PredictionError struct {
	Kind BundleKind
	Err  error
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s prediction failed: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *PredictionError) Unwrap() error {
	return e.Err
}

// NewPredictionError creates a new PredictionError.
func NewPredictionError(kind BundleKind, err error) *PredictionError {
	return &PredictionError{Kind: kind, Err: err}
}
