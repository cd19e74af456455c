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

package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostAccessors(t *testing.T) {
	h := NewHost("exec-1", "worker0:7337")
	assert.Equal(t, "exec-1", h.ID())
	assert.Equal(t, "worker0:7337", h.Address())
	assert.Equal(t, "worker0", h.Hostname())
	assert.Equal(t, "Host<ID=exec-1, Address=worker0:7337>", h.String())
}

func TestHostnameWithoutPort(t *testing.T) {
	h := NewHost("exec-1", "worker0")
	assert.Equal(t, "worker0", h.Hostname())
}

func TestMergedPseudoHost(t *testing.T) {
	merged := NewMergedHost("worker0:7337")
	assert.True(t, IsMergedPseudoHost(merged))
	assert.False(t, IsMergedPseudoHost(NewHost("exec-1", "worker0:7337")))
	assert.Equal(t, "worker0", merged.Hostname())
}

func TestEqual(t *testing.T) {
	a := NewHost("exec-1", "worker0:7337")
	b := NewHost("exec-1", "worker0:7337")
	c := NewHost("exec-2", "worker0:7337")
	d := NewHost("exec-1", "worker1:7337")
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d))
}

func TestSameHostname(t *testing.T) {
	a := NewHost("exec-1", "worker0:7337")
	b := NewHost("exec-2", "worker0:9999")
	c := NewHost("exec-3", "worker1:7337")
	assert.True(t, SameHostname(a, b))
	assert.False(t, SameHostname(a, c))
}
