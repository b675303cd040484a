/*
 * MIT License
 *
 * Copyright (c) 2024 gaspi contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package errors provides a small sentinel-error-code type used across every
// component of gaspi so a caller can test "which kind of failure" with a
// plain equality check instead of string matching or deep wrapped-error
// inspection.
package errors

import (
	"fmt"
)

// Error is a CodeError bound to an optional message and parent cause.
type Error struct {
	code    CodeError
	message string
	parent  error
}

// CodeErr declares a new named error sentinel for a package. Call once per
// error kind at package init time, e.g.:
//
//	var ErrServerValidate = CodeErr(MinPkgServer+1, "invalid server state")
func CodeErr(code CodeError, message string) *Error {
	return &Error{code: code, message: message}
}

// Error renders "[code] message", followed by ": parent" when a parent
// cause is attached.
func (e *Error) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.parent)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Code returns the sentinel's numeric code.
func (e *Error) Code() CodeError {
	return e.code
}

// Unwrap allows errors.Is/errors.As to see through to the parent cause.
func (e *Error) Unwrap() error {
	return e.parent
}

// WithParent returns a copy of this sentinel wrapping the given cause. A nil
// parent returns the sentinel unchanged (as an error value, not nil).
func (e *Error) WithParent(parent error) error {
	if parent == nil {
		return e
	}
	return &Error{code: e.code, message: e.message, parent: parent}
}

// Is lets errors.Is match any wrapped instance against the sentinel it was
// created from, regardless of attached parent.
func (e *Error) Is(target error) bool {
	o, ok := target.(*Error)
	if !ok {
		return false
	}
	return o.code == e.code
}
