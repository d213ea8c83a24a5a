// Package errors provides the classified error primitives used across pagebrew.
//
// Key features:
//   - ErrorCategory: broad classification (validation, render, asset, stylesheet, build, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing formatting
//
// Example usage:
//
//	err := errors.ValidationError("content root does not exist").
//		WithContext("path", root).
//		WithCause(statErr).
//		Build()
package errors
