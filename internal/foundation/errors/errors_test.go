package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "pagebrew.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "pagebrew.yaml" {
			t.Errorf("expected context file=pagebrew.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ValidationError("content root missing").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryValidation) {
			t.Error("expected error to have validation category")
		}
		if !err.IsFatal() {
			t.Error("expected validation error to be fatal")
		}
	})

	t.Run("Asset errors are warnings", func(t *testing.T) {
		err := AssetError("copy failed").Build()
		if err.IsFatal() {
			t.Error("expected asset error to be non-fatal")
		}
		if !HasSeverity(err, SeverityWarning) {
			t.Error("expected warning severity")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Wrap keeps cause", func(t *testing.T) {
		originalErr := errors.New("permission denied")
		err := WrapError(originalErr, CategoryFileSystem, "write output").
			Warning().
			WithContext("path", "dist/index.html").
			Build()

		if !errors.Is(err, originalErr) {
			t.Error("expected wrapped error to match cause via errors.Is")
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected warning severity, got %s", err.Severity())
		}
		want := "[filesystem:warning] write output: permission denied"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("WithContext does not mutate original", func(t *testing.T) {
		base := RenderError("template failed").Build()
		derived := base.WithContext("template", "post")

		if _, ok := base.Context().Get("template"); ok {
			t.Error("expected base context to stay unchanged")
		}
		if v, _ := derived.Context().GetString("template"); v != "post" {
			t.Errorf("expected derived context template=post, got %q", v)
		}
	})
}

func TestAsClassified_FindsWrappedError(t *testing.T) {
	inner := TemplateError("no template").WithContext("key", "index").Build()
	outer := fmt.Errorf("stage render: %w", inner)

	got, ok := AsClassified(outer)
	if !ok {
		t.Fatal("expected classified error in chain")
	}
	if got.Category() != CategoryTemplate {
		t.Errorf("expected template category, got %s", got.Category())
	}
	if GetCategory(errors.New("plain")) != CategoryInternal {
		t.Error("expected internal category for unclassified errors")
	}
	if GetSeverity(errors.New("plain")) != SeverityError {
		t.Error("expected error severity for unclassified errors")
	}
}

func TestErrorContext_Merge(t *testing.T) {
	a := ErrorContext{"x": 1, "y": 2}
	b := ErrorContext{"y": 3}
	merged := a.Merge(b)
	if merged["x"] != 1 || merged["y"] != 3 {
		t.Errorf("unexpected merge result %v", merged)
	}
	var empty ErrorContext
	if got := empty.Merge(b); got["y"] != 3 {
		t.Errorf("expected nil receiver to return other, got %v", got)
	}
}
