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

package fetcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	xerrors "github.com/m3db/shuffle/src/x/errors"

	"github.com/pborman/uuid"
)

var errTempFileRegistryClosed = errors.New("temp file registry closed")

// tempFileRegistry creates spill files for large fetches and deletes
// every registered file when closed.
type tempFileRegistry struct {
	mu     sync.Mutex
	dir    string
	closed bool
	files  map[string]struct{}
}

// NewTempFileRegistry returns a registry creating files under dir, or
// under the system temp directory when dir is empty.
func NewTempFileRegistry(dir string) TempFileRegistry {
	if dir == "" {
		dir = os.TempDir()
	}
	return &tempFileRegistry{
		dir:   dir,
		files: make(map[string]struct{}),
	}
}

func (t *tempFileRegistry) CreateTempFile() (*os.File, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, errTempFileRegistryClosed
	}
	return os.Create(filepath.Join(t.dir, "shuffle-fetch-"+uuid.New()))
}

func (t *tempFileRegistry) RegisterTempFileToClean(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.files[path] = struct{}{}
	return true
}

func (t *tempFileRegistry) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	files := t.files
	t.files = nil
	t.mu.Unlock()

	multiErr := xerrors.NewMultiError()
	for path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			multiErr = multiErr.Add(err)
		}
	}
	return multiErr.FinalError()
}
