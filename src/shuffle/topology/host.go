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
	"fmt"
	"net"
	"strings"
)

type host struct {
	id      string
	address string
}

// NewHost creates a new host.
func NewHost(id, address string) Host {
	return &host{id: id, address: address}
}

// NewMergedHost creates the pseudo-host representing merged block storage
// on the machine at the given address. Merged pseudo-hosts carry no process
// identifier since merged blocks are not owned by any single process.
func NewMergedHost(address string) Host {
	return &host{address: address}
}

func (h *host) ID() string {
	return h.id
}

func (h *host) Address() string {
	return h.address
}

func (h *host) Hostname() string {
	if name, _, err := net.SplitHostPort(h.address); err == nil {
		return name
	}
	if idx := strings.LastIndex(h.address, ":"); idx >= 0 {
		return h.address[:idx]
	}
	return h.address
}

func (h *host) String() string {
	return fmt.Sprintf("Host<ID=%s, Address=%s>", h.id, h.address)
}

// IsMergedPseudoHost returns whether the host is a merged pseudo-host.
// All special-casing of merged block locations goes through this
// predicate rather than comparing process identifiers inline.
func IsMergedPseudoHost(h Host) bool {
	return h.ID() == ""
}

// Equal returns whether two hosts identify the same process.
func Equal(a, b Host) bool {
	return a.ID() == b.ID() && a.Address() == b.Address()
}

// SameHostname returns whether two hosts live on the same machine.
func SameHostname(a, b Host) bool {
	return a.Hostname() == b.Hostname()
}
