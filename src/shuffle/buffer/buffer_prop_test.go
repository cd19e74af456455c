// Copyright (c) 2021 Uber Technologies, Inc.
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

package buffer

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	"github.com/m3db/shuffle/src/x/checked"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	propTestRandomSeed     int64 = 288411
	propTestMinSuccessful        = 1000
	propTestMinSuccessfulIO      = 100
)

func TestBytesBufferRefCountingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(propTestRandomSeed)
	parameters.MinSuccessfulTests = propTestMinSuccessful
	props := gopter.NewProperties(parameters)

	props.Property("backing bytes finalize exactly once when the last reference drops", prop.ForAll(
		func(payload string, extraRefs int) (bool, error) {
			finalized := 0
			data := checked.NewBytes([]byte(payload), checked.NewBytesOptions().
				SetFinalizer(checked.BytesFinalizerFn(func(finalizing checked.Bytes) {
					finalized++
				})))
			buf := NewBytesBuffer(data)
			for i := 0; i < extraRefs; i++ {
				buf.IncRef()
			}

			total := extraRefs + 1
			for i := 0; i < total; i++ {
				if got := buf.NumRef(); got != total-i {
					return false, fmt.Errorf("expected %d refs, got %d", total-i, got)
				}
				r, err := buf.NewReader()
				if err != nil {
					return false, fmt.Errorf("reader with %d refs live: %v", total-i, err)
				}
				read, err := ioutil.ReadAll(r)
				if err != nil {
					return false, err
				}
				if err := r.Close(); err != nil {
					return false, err
				}
				if !bytes.Equal([]byte(payload), read) {
					return false, fmt.Errorf("read %q, want %q", read, payload)
				}
				if finalized != 0 {
					return false, fmt.Errorf("finalized with %d refs live", total-i)
				}
				buf.DecRef()
			}

			if finalized != 1 {
				return false, fmt.Errorf("finalized %d times", finalized)
			}
			if got := buf.NumRef(); got != 0 {
				return false, fmt.Errorf("%d refs left after release", got)
			}
			if _, err := buf.NewReader(); err == nil {
				return false, fmt.Errorf("reader handed out after free")
			}
			return true, nil
		},
		gen.AnyString(),
		gen.IntRange(0, 8),
	))

	props.Property("holders keep the payload readable after the creator releases", prop.ForAll(
		func(payload string, holders int) (bool, error) {
			finalized := 0
			data := checked.NewBytes([]byte(payload), checked.NewBytesOptions().
				SetFinalizer(checked.BytesFinalizerFn(func(finalizing checked.Bytes) {
					finalized++
				})))
			buf := NewBytesBuffer(data)
			for i := 0; i < holders; i++ {
				buf.IncRef()
			}
			buf.DecRef()

			for i := 0; i < holders; i++ {
				if finalized != 0 {
					return false, fmt.Errorf("finalized with %d holders live", holders-i)
				}
				r, err := buf.NewReader()
				if err != nil {
					return false, err
				}
				read, err := ioutil.ReadAll(r)
				if err != nil {
					return false, err
				}
				if !bytes.Equal([]byte(payload), read) {
					return false, fmt.Errorf("read %q, want %q", read, payload)
				}
				buf.DecRef()
			}
			if finalized != 1 {
				return false, fmt.Errorf("finalized %d times", finalized)
			}
			return true, nil
		},
		gen.AnyString(),
		gen.IntRange(1, 4),
	))

	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)
	if !props.Run(reporter) {
		t.Errorf("failed with seed %d", propTestRandomSeed)
	}
}

func TestFileBufferProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(propTestRandomSeed)
	parameters.MinSuccessfulTests = propTestMinSuccessfulIO
	props := gopter.NewProperties(parameters)

	props.Property("file backed buffers read the bytes their bounds cover", prop.ForAll(
		func(payload string, offsetSeed, lengthSeed int) (bool, error) {
			f, err := ioutil.TempFile("", "buffer-prop-test")
			if err != nil {
				return false, err
			}
			path := f.Name()
			defer os.Remove(path)
			if _, err := f.WriteString(payload); err != nil {
				f.Close()
				return false, err
			}
			if err := f.Close(); err != nil {
				return false, err
			}

			whole, err := NewFileBuffer(path)
			if err != nil {
				return false, err
			}
			if got := whole.Size(); got != int64(len(payload)) {
				return false, fmt.Errorf("file buffer size %d, want %d", got, len(payload))
			}
			r, err := whole.NewReader()
			if err != nil {
				return false, err
			}
			read, err := ioutil.ReadAll(r)
			if err != nil {
				return false, err
			}
			if err := r.Close(); err != nil {
				return false, err
			}
			whole.DecRef()
			if !bytes.Equal([]byte(payload), read) {
				return false, fmt.Errorf("file read %q, want %q", read, payload)
			}

			var (
				offset = int64(offsetSeed % (len(payload) + 1))
				length = int64(lengthSeed % (len(payload) - int(offset) + 1))
			)
			segment := NewFileSegmentBuffer(path, offset, length)
			if got := segment.Size(); got != length {
				return false, fmt.Errorf("segment size %d, want %d", got, length)
			}
			r, err = segment.NewReader()
			if err != nil {
				return false, err
			}
			read, err = ioutil.ReadAll(r)
			if err != nil {
				return false, err
			}
			if err := r.Close(); err != nil {
				return false, err
			}
			segment.DecRef()
			want := []byte(payload)[offset : offset+length]
			if !bytes.Equal(want, read) {
				return false, fmt.Errorf("segment read %q, want %q", read, want)
			}
			return true, nil
		},
		gen.AnyString(),
		gen.IntRange(0, 1<<30),
		gen.IntRange(0, 1<<30),
	))

	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)
	if !props.Run(reporter) {
		t.Errorf("failed with seed %d", propTestRandomSeed)
	}
}
