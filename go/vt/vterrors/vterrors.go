/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vterrors mirrors the error-kind vocabulary: errors
// here carry a Code rather than a bespoke Go type, the same way vitess's
// own go/vt/vterrors wraps a vtrpcpb.Code onto every error it returns.
package vterrors

import (
	"errors"
	"fmt"
)

// Code classifies an error the way vitess's vtrpcpb.Code does.
type Code int

// Error kinds used by the locator.
const (
	CodeOK Code = iota
	CodeUnavailable
	CodeFailedPrecondition
	CodeInternal
	CodeInvalidArgument
	CodeAborted
)

func (c Code) String() string {
	switch c {
	case CodeUnavailable:
		return "UNAVAILABLE"
	case CodeFailedPrecondition:
		return "FAILED_PRECONDITION"
	case CodeInternal:
		return "INTERNAL"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeAborted:
		return "ABORTED"
	default:
		return "OK"
	}
}

type vterror struct {
	code Code
	msg  string
	wrap error
}

func (e *vterror) Error() string {
	if e.wrap != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.wrap)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *vterror) Unwrap() error {
	return e.wrap
}

// Errorf creates a new coded error.
func Errorf(code Code, format string, args ...interface{}) error {
	return &vterror{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrapf wraps an existing error with additional context, preserving its
// code if it already carries one, defaulting to CodeInternal otherwise.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &vterror{code: CodeOf(err), msg: fmt.Sprintf(format, args...), wrap: err}
}

// New creates a coded error from a plain message, without formatting.
func New(code Code, msg string) error {
	return &vterror{code: code, msg: msg}
}

// CodeOf extracts the Code carried by err, or CodeOK if err is nil, or
// CodeInternal if err does not carry one.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var ve *vterror
	if errors.As(err, &ve) {
		return ve.code
	}
	return CodeInternal
}

// InconsistentMetadata returns the fatal, fail-closed error for two
// distinct locations for one extent returned within the same metadata
// read. It carries CodeAborted.
func InconsistentMetadata(extentDesc string) error {
	return Errorf(CodeAborted, "inconsistent metadata: extent %s was returned with two distinct locations in one read", extentDesc)
}

// IsInconsistentMetadata reports whether err is an InconsistentMetadata failure.
func IsInconsistentMetadata(err error) bool {
	return CodeOf(err) == CodeAborted
}
