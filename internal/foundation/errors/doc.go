// Package errors provides foundational, type-safe error primitives used across pagebuilder.
//
// This package contains classified error types and helpers for consistent error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, validation, transform, filesystem, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, cause and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit code mapping and terminal presentation
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryFileSystem, "create staging directory").
//		WithContext("path", dir).
//		Build()
package errors
