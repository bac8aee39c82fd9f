package errors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
)

// Error types for the extraction and resolution pipeline
type ErrorType string

const (
	// Load-time errors
	ErrorTypeRuleDefinition ErrorType = "rule_definition"
	ErrorTypeConfig         ErrorType = "config"

	// File-scoped errors
	ErrorTypeParse           ErrorType = "parse"
	ErrorTypeMatchExtraction ErrorType = "match_extraction"
	ErrorTypeIndexing        ErrorType = "indexing"

	// Repository-scoped errors
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeStore      ErrorType = "store"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// RuleDefinitionError reports a bad rule table entry. It is fatal for the
// language whose table contains it.
type RuleDefinitionError struct {
	Type       ErrorType
	Language   string
	RuleID     string
	Field      string
	Reason     string
	Suggestion string
	Underlying error
}

// NewRuleDefinitionError creates a rule definition error
func NewRuleDefinitionError(language, ruleID, field, reason string) *RuleDefinitionError {
	return &RuleDefinitionError{
		Type:     ErrorTypeRuleDefinition,
		Language: language,
		RuleID:   ruleID,
		Field:    field,
		Reason:   reason,
	}
}

// WithSuggestion attaches the closest known value to got.
func (e *RuleDefinitionError) WithSuggestion(got string, known []string) *RuleDefinitionError {
	e.Suggestion = Suggest(got, known)
	return e
}

// WithUnderlying attaches the error that caused the rejection
func (e *RuleDefinitionError) WithUnderlying(err error) *RuleDefinitionError {
	e.Underlying = err
	return e
}

// Error implements the error interface
func (e *RuleDefinitionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rule %q: invalid %s: %s", e.Language, e.RuleID, e.Field, e.Reason)
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *RuleDefinitionError) Unwrap() error {
	return e.Underlying
}

// Suggest returns the known value closest to got by edit distance, or ""
// when nothing is close enough to be a plausible typo.
func Suggest(got string, known []string) string {
	if got == "" || len(known) == 0 {
		return ""
	}
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	best, bestDist := "", -1
	for _, k := range sorted {
		d := edlib.LevenshteinDistance(got, k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	limit := len(got)/2 + 1
	if limit > 4 {
		limit = 4
	}
	if bestDist > limit {
		return ""
	}
	return best
}

// IndexingError represents an error while scanning or reading files
type IndexingError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *IndexingError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *IndexingError) IsRecoverable() bool {
	return e.Recoverable
}

// ParseError is a file-level failure: the file produced no usable tree.
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Language   string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path, language string, line, column int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Language:   language,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %v", e.Language, e.FilePath, e.Line, e.Column, e.Underlying)
	}
	return fmt.Sprintf("parse error in %s at %s: %v", e.Language, e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// MatchExtractionError reports one candidate match that could not become an
// entity. The rest of the file is unaffected.
type MatchExtractionError struct {
	Type     ErrorType
	FilePath string
	RuleID   string
	Line     int
	Column   int
	Reason   string
}

// NewMatchExtractionError creates a candidate-level extraction error
func NewMatchExtractionError(path, ruleID string, line, column int, reason string) *MatchExtractionError {
	return &MatchExtractionError{
		Type:     ErrorTypeMatchExtraction,
		FilePath: path,
		RuleID:   ruleID,
		Line:     line,
		Column:   column,
		Reason:   reason,
	}
}

// Error implements the error interface
func (e *MatchExtractionError) Error() string {
	return fmt.Sprintf("rule %s skipped candidate at %s:%d:%d: %s", e.RuleID, e.FilePath, e.Line, e.Column, e.Reason)
}

// ResolutionError reports a relationship kind whose pass failed as a whole.
type ResolutionError struct {
	Type       ErrorType
	Kind       string
	Underlying error
	Timestamp  time.Time
}

// NewResolutionError creates a new resolution error
func NewResolutionError(kind string, err error) *ResolutionError {
	return &ResolutionError{
		Type:       ErrorTypeResolution,
		Kind:       kind,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s failed: %v", e.Kind, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ResolutionError) Unwrap() error {
	return e.Underlying
}

// StoreError reports a failed write or read against the persistence layer
type StoreError struct {
	Type       ErrorType
	Operation  string
	Underlying error
}

// NewStoreError creates a new store error
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Type: ErrorTypeStore, Operation: op, Underlying: err}
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
