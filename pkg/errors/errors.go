// Package errors provides the structured error taxonomy for the poseml
// training and inference pipeline. Every domain error carries a stack trace
// (via cockroachdb/errors) and knows how to marshal itself into a zerolog
// event for structured logging.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// InvalidArchitectureError indicates a model factory configuration that can
// never produce a valid network: unknown architecture kind, non-positive
// dimensions, or an empty hidden-layer list. It is fatal at construction time.
type InvalidArchitectureError struct {
	Kind   string
	Reason string
}

func (e *InvalidArchitectureError) Error() string {
	return fmt.Sprintf("poseml: invalid architecture %q: %s", e.Kind, e.Reason)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *InvalidArchitectureError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("architecture", e.Kind).
		Str("reason", e.Reason).
		Str("type", "InvalidArchitectureError")
}

// NewInvalidArchitectureError creates an InvalidArchitectureError with a stack trace.
func NewInvalidArchitectureError(kind, reason string) error {
	err := &InvalidArchitectureError{Kind: kind, Reason: reason}
	return errors.WithStack(err)
}

// ShapeMismatchError indicates a dimension disagreement between data and a
// model or store. Fatal during training and capture; the inference gate never
// lets one escape (it degrades to a zero correction instead).
type ShapeMismatchError struct {
	Op       string
	Expected []int
	Got      []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("poseml: %s: shape mismatch, expected %v, got %v", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError creates a ShapeMismatchError with a stack trace.
func NewShapeMismatchError(op string, expected, got []int) error {
	err := &ShapeMismatchError{Op: op, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// DatasetNotFoundError indicates a dataset path that does not exist.
type DatasetNotFoundError struct {
	Path string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("poseml: dataset not found: %s", e.Path)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DatasetNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "DatasetNotFoundError")
}

// NewDatasetNotFoundError creates a DatasetNotFoundError with a stack trace.
func NewDatasetNotFoundError(path string) error {
	err := &DatasetNotFoundError{Path: path}
	return errors.WithStack(err)
}

// FormatError indicates a persisted artifact (dataset, checkpoint, exported
// model) whose headers or array shapes are malformed or mutually inconsistent.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("poseml: malformed file %s: %s", e.Path, e.Reason)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *FormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("reason", e.Reason).
		Str("type", "FormatError")
}

// NewFormatError creates a FormatError with a stack trace.
func NewFormatError(path, reason string) error {
	err := &FormatError{Path: path, Reason: reason}
	return errors.WithStack(err)
}

// PartialExportError reports that one export target failed. It is non-fatal:
// the exporter logs it and keeps going with the remaining targets.
type PartialExportError struct {
	Format string
	Err    error
}

func (e *PartialExportError) Error() string {
	return fmt.Sprintf("poseml: export target %q failed: %v", e.Format, e.Err)
}

func (e *PartialExportError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *PartialExportError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("format", e.Format).
		AnErr("cause", e.Err).
		Str("type", "PartialExportError")
}

// NewPartialExportError creates a PartialExportError with a stack trace.
func NewPartialExportError(format string, cause error) error {
	err := &PartialExportError{Format: format, Err: cause}
	return errors.WithStack(err)
}

// NotFittedError indicates an operation that requires a trained model was
// invoked before training produced one. The inference gate does not use this
// error; it checks its loaded state explicitly instead.
type NotFittedError struct {
	Component string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("poseml: %s: no trained model available, call Fit() before %s()", e.Component, e.Method)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(component, method string) error {
	err := &NotFittedError{Component: component, Method: method}
	return errors.WithStack(err)
}

// ValueError indicates an argument whose value is out of range or otherwise
// unusable for the operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("poseml: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Join combines multiple errors into one.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Common sentinel errors.
var (
	// ErrEmptyData is returned when an operation receives no data.
	ErrEmptyData = New("empty data")
)
