// Package errors defines error types for the native messaging transport.
//
// This package provides structured error types for launch failures,
// unexpected host termination and stream desynchronization. All error types
// support error unwrapping and can be checked using errors.Is, errors.As,
// and errors.AsType.
package errors
