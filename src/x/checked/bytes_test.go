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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesAccessors(t *testing.T) {
	value := []byte("foobarbaz")
	b := NewBytes(value, nil)

	b.IncRef()
	assert.Equal(t, value, b.Bytes())
	assert.Equal(t, len(value), b.Len())
	assert.Equal(t, cap(value), b.Cap())

	b.AppendAll([]byte("qux"))
	assert.Equal(t, []byte("foobarbazqux"), b.Bytes())

	b.Resize(3)
	assert.Equal(t, []byte("foo"), b.Bytes())
	assert.Equal(t, 3, b.Len())

	b.Append('d')
	assert.Equal(t, []byte("food"), b.Bytes())
	b.DecRef()
}

func TestBytesReset(t *testing.T) {
	b := NewBytes([]byte("foo"), nil)

	b.IncRef()
	b.Reset([]byte("barbaz"))
	assert.Equal(t, []byte("barbaz"), b.Bytes())
	assert.Equal(t, 6, b.Len())
	b.DecRef()
}

func TestBytesFinalizerCalledOnce(t *testing.T) {
	finalizerCalls := 0
	opts := NewBytesOptions().SetFinalizer(BytesFinalizerFn(func(finalizing Bytes) {
		assert.Equal(t, 0, finalizing.NumRef())
		finalizerCalls++
	}))

	b := NewBytes([]byte("foo"), opts)
	b.IncRef()
	b.DecRef()
	b.Finalize()

	require.Equal(t, 1, finalizerCalls)
}

func TestBytesReadAfterFree(t *testing.T) {
	var err error
	SetPanicFn(func(e error) {
		err = e
	})
	defer ResetPanicFn()

	b := NewBytes([]byte("foo"), nil)
	b.IncRef()
	b.DecRef()
	require.NoError(t, err)

	b.Bytes()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after free")
}
