// Package errors defines error types for the opencode bridge.
//
// This package provides structured error types that wrap the failure
// scenarios of managing the OpenCode server and talking to its HTTP API.
// All error types support error unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors
