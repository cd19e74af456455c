// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package errors provides utilities for working with different types of errors.
package errors

import (
	"strings"
)

// ContainedError is an error with a contained error.
type ContainedError interface {
	InnerError() error
}

type containedError struct {
	inner error
}

func (e containedError) Error() string {
	return e.inner.Error()
}

func (e containedError) InnerError() error {
	return e.inner
}

// InnerError returns the packaged inner error if this is an error that
// contains another.
func InnerError(err error) error {
	contained, ok := err.(ContainedError)
	if !ok {
		return nil
	}
	return contained.InnerError()
}

type invalidParamsError struct {
	containedError
}

type renamedError struct {
	containedError
	renamed error
}

// NewRenamedError returns a new error that packages an inner error with
// a renamed error.
func NewRenamedError(inner, renamed error) error {
	return renamedError{containedError{inner}, renamed}
}

func (e renamedError) Error() string {
	return e.renamed.Error()
}

func (e renamedError) Unwrap() error {
	return e.inner
}

// NewInvalidParamsError creates a new invalid params error.
func NewInvalidParamsError(inner error) error {
	return invalidParamsError{containedError{inner}}
}

func (e invalidParamsError) Unwrap() error {
	return e.inner
}

// IsInvalidParams returns true if this is an invalid params error.
func IsInvalidParams(err error) bool {
	return GetInnerInvalidParamsError(err) != nil
}

// GetInnerInvalidParamsError returns an inner invalid params error
// if contained by this error, nil otherwise.
func GetInnerInvalidParamsError(err error) error {
	for err != nil {
		if _, ok := err.(invalidParamsError); ok {
			return InnerError(err)
		}
		err = InnerError(err)
	}
	return nil
}

// MultiError is an immutable error that packages a list of errors.
type MultiError struct {
	count     int
	err       error // optimization, lazily allocate slice
	allErrors []error
}

// NewMultiError creates a new multi error.
func NewMultiError() MultiError {
	return MultiError{}
}

// Empty returns true if the multi error has no errors.
func (e MultiError) Empty() bool {
	return e.err == nil
}

func (e MultiError) Error() string {
	if e.err == nil {
		return ""
	}
	if e.count == 1 {
		return e.err.Error()
	}
	var b strings.Builder
	for i := range e.allErrors {
		b.WriteString(e.allErrors[i].Error())
		if i != len(e.allErrors)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Add adds an error and returns a new multi error, immutable.
func (e MultiError) Add(err error) MultiError {
	if err == nil {
		return e
	}
	me := e
	if me.err == nil {
		me.err = err
	}
	me.count++
	me.allErrors = append(me.allErrors, err)
	return me
}

// FinalError returns the final error, nil if no errors were added.
func (e MultiError) FinalError() error {
	if e.err == nil {
		return nil
	}
	return e
}

// LastError returns the last error added, nil if no errors were added.
func (e MultiError) LastError() error {
	if e.err == nil {
		return nil
	}
	return e.allErrors[len(e.allErrors)-1]
}

// NumErrors returns the count of errors added.
func (e MultiError) NumErrors() int {
	return e.count
}

// Errors returns all the errors added.
func (e MultiError) Errors() []error {
	return e.allErrors
}
