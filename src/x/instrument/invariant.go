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

package instrument

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// InvariantViolatedMetricName is the name of the metric emitted upon
	// invariant violations.
	InvariantViolatedMetricName = "invariant_violated"

	// InvariantViolatedLogFieldName is the name of the log field to use
	// when generating errors/log statements pertaining to the violation of
	// an invariant.
	InvariantViolatedLogFieldName = "violation"

	// InvariantViolatedLogFieldValue is the value of the log field to use
	// when generating errors/log statements pertaining to the violation of
	// an invariant.
	InvariantViolatedLogFieldValue = InvariantViolatedMetricName

	// ShouldPanicEnvironmentVariableName is the name of the environment
	// variable that must be set to "true" in order for the invariant
	// violated functions to panic after logging / emitting metrics. Should
	// only be set in test environments.
	ShouldPanicEnvironmentVariableName = "PANIC_ON_INVARIANT_VIOLATED"
)

// EmitInvariantViolation emits a metric to indicate a system invariant has
// been violated. Users of this method are expected to monitor/alert off this
// metric to ensure they're notified when such an event occurs.
func EmitInvariantViolation(opts Options) {
	// Do not use a sampled scope, invariant violations should never be lost.
	opts.MetricsScope().Counter(InvariantViolatedMetricName).Inc(1)

	panicIfEnvSet()
}

// EmitAndLogInvariantViolation emits a metric and a log message to indicate
// a system invariant has been violated.
func EmitAndLogInvariantViolation(opts Options, f func(l *zap.Logger)) {
	logger := opts.Logger().WithOptions(
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(
		zap.String(InvariantViolatedLogFieldName, InvariantViolatedLogFieldValue),
	)
	f(logger)

	EmitInvariantViolation(opts)
}

// InvariantErrorf constructs a new error, prefixed with a string indicating
// that an invariant violation occurred.
func InvariantErrorf(format string, args ...interface{}) error {
	var (
		invariantFormat = InvariantViolatedLogFieldValue + ": " + format
		err             = fmt.Errorf(invariantFormat, args...)
	)
	panicIfEnvSet()
	return err
}

func panicIfEnvSet() {
	panicIfEnvSetWithMessage("")
}

func panicIfEnvSetWithMessage(s string) {
	envIsSet := strings.ToLower(os.Getenv(ShouldPanicEnvironmentVariableName)) == "true"

	if envIsSet {
		if s == "" {
			s = "invariant violation detected"
		}
		panic(s)
	}
}
