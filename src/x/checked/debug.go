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

package checked

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// PanicFn is a panic function to call on invalid checked state.
type PanicFn func(e error)

var panicFn PanicFn = defaultPanic

// SetPanicFn sets the panic function.
func SetPanicFn(fn PanicFn) {
	panicFn = fn
}

// ResetPanicFn resets the panic function to the default runtime panic.
func ResetPanicFn() {
	panicFn = defaultPanic
}

// Panic will execute the currently set panic function.
func Panic(e error) {
	panicFn(e)
}

func defaultPanic(e error) {
	panic(e)
}

func panicRef(c *RefCount, err error) {
	Panic(err)
}

var leakState struct {
	sync.Mutex
	enabled bool
	leaks   map[string]uint64
}

// EnableLeakDetection turns on leak detection for all checked resources
// that are tracked with TrackObject. It should only be used in tests as
// tracking carries a significant performance cost.
func EnableLeakDetection() {
	leakState.Lock()
	leakState.enabled = true
	leakState.Unlock()
}

// DisableLeakDetection turns off leak detection.
func DisableLeakDetection() {
	leakState.Lock()
	leakState.enabled = false
	leakState.Unlock()
}

func leakDetectionEnabled() bool {
	leakState.Lock()
	enabled := leakState.enabled
	leakState.Unlock()
	return enabled
}

// DumpLeaks returns all detected leaks so far.
func DumpLeaks() []string {
	var r []string

	leakState.Lock()
	for k, v := range leakState.leaks {
		r = append(r, fmt.Sprintf("leaked %d objects, origin:\n%s", v, k))
	}
	leakState.Unlock()

	return r
}

// TrackObject sets up the object for leak detection. The object is
// registered with the runtime so that if it is garbage collected while
// still referenced the origin of the object is recorded as a leak.
func (c *RefCount) TrackObject(v interface{}) {
	if !leakDetectionEnabled() {
		return
	}

	origin := string(debug.Stack())
	runtime.SetFinalizer(v, func(obj interface{}) {
		ref, ok := obj.(Ref)
		if !ok || ref.NumRef() == 0 {
			return
		}

		leakState.Lock()
		if leakState.leaks == nil {
			leakState.leaks = make(map[string]uint64)
		}
		leakState.leaks[origin]++
		leakState.Unlock()
	})
}
