package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRuleDefinitionError(t *testing.T) {
	err := NewRuleDefinitionError("rust", "rust.function", "metadata", `unknown extractor "functon"`).
		WithSuggestion("functon", []string{"none", "function", "method"})

	if err.Type != ErrorTypeRuleDefinition {
		t.Errorf("Expected Type to be ErrorTypeRuleDefinition, got %v", err.Type)
	}

	if err.Suggestion != "function" {
		t.Errorf("Expected suggestion 'function', got %q", err.Suggestion)
	}

	expectedMsg := `rust rule "rust.function": invalid metadata: unknown extractor "functon" (did you mean "function"?)`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	var target *RuleDefinitionError
	if !errors.As(error(err), &target) {
		t.Errorf("Expected errors.As to find RuleDefinitionError")
	}
}

func TestSuggest(t *testing.T) {
	known := []string{"has-child", "not-has-child", "has-ancestor"}

	if got := Suggest("has-chld", known); got != "has-child" {
		t.Errorf("Expected 'has-child', got %q", got)
	}

	if got := Suggest("completely-different", known); got != "" {
		t.Errorf("Expected no suggestion, got %q", got)
	}

	if got := Suggest("", known); got != "" {
		t.Errorf("Expected no suggestion for empty input, got %q", got)
	}
}

func TestIndexingError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewIndexingError("read", underlying).
		WithFile("/path/to/file").
		WithRecoverable(true)

	if err.Type != ErrorTypeIndexing {
		t.Errorf("Expected Type to be ErrorTypeIndexing, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	if !err.IsRecoverable() {
		t.Errorf("Expected error to be marked as recoverable")
	}

	expectedMsg := "indexing read failed for /path/to/file: underlying error"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestParseError(t *testing.T) {
	underlying := errors.New("no tree produced")
	err := NewParseError("src/lib.rs", "rust", 0, 0, underlying)

	if err.Type != ErrorTypeParse {
		t.Errorf("Expected Type to be ErrorTypeParse, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	if err.Error() != "parse error in rust at src/lib.rs: no tree produced" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	positioned := NewParseError("a.py", "python", 3, 7, underlying)
	if !strings.Contains(positioned.Error(), "a.py:3:7") {
		t.Errorf("Expected position in message, got %q", positioned.Error())
	}
}

func TestMatchExtractionError(t *testing.T) {
	err := NewMatchExtractionError("src/lib.rs", "rust.struct", 4, 1, "missing capture name")

	expectedMsg := "rule rust.struct skipped candidate at src/lib.rs:4:1: missing capture name"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestResolutionError(t *testing.T) {
	underlying := errors.New("boom")
	err := NewResolutionError("calls", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	if err.Error() != "resolving calls failed: boom" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("extract.workers", "-1", underlying)

	expectedMsg := "config error for field extract.workers (value -1): invalid value"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multi := NewMultiError([]error{err1, nil, err2})
	if len(multi.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(multi.Errors))
	}

	if !errors.Is(multi, err2) {
		t.Errorf("Expected errors.Is to see wrapped errors")
	}

	single := NewMultiError([]error{err1})
	if single.Error() != "error 1" {
		t.Errorf("Expected single error message, got %q", single.Error())
	}

	empty := NewMultiError(nil)
	if empty.ErrorOrNil() != nil {
		t.Errorf("Expected nil for empty MultiError")
	}
}
