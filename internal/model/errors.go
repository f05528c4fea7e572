package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Error is a governance failure with a stable category code.
//
// Every failure surfaced by the pipeline carries:
//   - Code: a stable category that downstream tooling can switch on
//   - Message: a human-readable description
//   - Details: the numeric context that produced the failure
//     (e.g. sinphase and threshold on BELOW_THRESHOLD)
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes governance errors.
type ErrorCode string

const (
	// ErrCodeArtifactMissing indicates declared build outputs are absent or unreadable.
	ErrCodeArtifactMissing ErrorCode = "ARTIFACT_MISSING"

	// ErrCodeNoTestData indicates the test summary has total = 0.
	ErrCodeNoTestData ErrorCode = "NO_TEST_DATA"

	// ErrCodeTestSummaryParse indicates the test runner output has no usable summary line.
	ErrCodeTestSummaryParse ErrorCode = "TEST_SUMMARY_PARSE_ERROR"

	// ErrCodeBelowThreshold indicates sinphase failed the configured bar.
	ErrCodeBelowThreshold ErrorCode = "BELOW_THRESHOLD"

	// ErrCodeManifestBuild indicates a hashing or signing failure.
	ErrCodeManifestBuild ErrorCode = "MANIFEST_BUILD_FAILED"

	// ErrCodeTagExists indicates the computed tag name is already taken.
	ErrCodeTagExists ErrorCode = "TAG_ALREADY_EXISTS"

	// ErrCodeConfigInvalid indicates the configuration failed validation.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrCodeVCS indicates the version-control backend failed.
	ErrCodeVCS ErrorCode = "VCS_FAILED"

	// ErrCodeSealMismatch indicates a tag's annotation is malformed or its
	// aura seal does not verify.
	ErrCodeSealMismatch ErrorCode = "SEAL_MISMATCH"
)

// Severity tells the caller whether a failure halts the pipeline.
type Severity string

const (
	SeverityAdvisory Severity = "advisory"
	SeverityFatal    Severity = "fatal"
)

// Severity reports the category's severity. Only ARTIFACT_MISSING is advisory.
func (c ErrorCode) Severity() Severity {
	if c == ErrCodeArtifactMissing {
		return SeverityAdvisory
	}
	return SeverityFatal
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + e.Details[k]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Severity reports whether this error halts the pipeline.
func (e *Error) Severity() Severity {
	return e.Code.Severity()
}

// CodeOf extracts the error category from err.
// Returns "" if err is not (and does not wrap) an *Error.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// HasCode returns true if err is a governance error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsAdvisory returns true if err is a governance error that does not halt the pipeline.
func IsAdvisory(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Severity() == SeverityAdvisory
	}
	return false
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error with an underlying cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail adds a key/value pair of context and returns the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// NewArtifactMissingError reports which declared artifacts were absent.
func NewArtifactMissingError(missing []string, declared int) *Error {
	return &Error{
		Code:    ErrCodeArtifactMissing,
		Message: fmt.Sprintf("%d of %d declared artifacts missing: %s", len(missing), declared, strings.Join(missing, ", ")),
		Details: map[string]string{
			"missing":  fmt.Sprintf("%d", len(missing)),
			"declared": fmt.Sprintf("%d", declared),
		},
	}
}

// NewBelowThresholdError reports a failed governance gate.
func NewBelowThresholdError(sinphase, threshold float64) *Error {
	return &Error{
		Code:    ErrCodeBelowThreshold,
		Message: fmt.Sprintf("sinphase %s is below threshold %s", formatMetric(sinphase), formatMetric(threshold)),
		Details: map[string]string{
			"sinphase":  formatMetric(sinphase),
			"threshold": formatMetric(threshold),
		},
	}
}

// formatMetric renders four decimals, or every digit needed when four
// would hide how close the value is to the bar (0.49996 is not "0.5000").
func formatMetric(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == v {
		return s
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewTagExistsError reports a tag name collision.
func NewTagExistsError(name string) *Error {
	return &Error{
		Code:    ErrCodeTagExists,
		Message: fmt.Sprintf("tag %q already exists", name),
		Details: map[string]string{"tag": name},
	}
}
