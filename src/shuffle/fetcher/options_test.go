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
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptions(ctrl *gomock.Controller) Options {
	return NewOptions().
		SetBlockStore(NewMockBlockStore(ctrl)).
		SetRemoteBlockClient(NewMockRemoteBlockClient(ctrl))
}

func TestOptionsValidateRequiresCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	assert.Equal(t, errNoBlockStore, NewOptions().Validate())

	missingClient := NewOptions().SetBlockStore(NewMockBlockStore(ctrl))
	assert.Equal(t, errNoRemoteBlockClient, missingClient.Validate())

	require.NoError(t, newTestOptions(ctrl).Validate())
}

func TestOptionsValidateBounds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	opts := newTestOptions(ctrl)
	assert.Equal(t, errMaxBytesInFlightNotPositive,
		opts.SetMaxBytesInFlight(0).Validate())
	assert.Equal(t, errMaxRequestsInFlightNotPositive,
		opts.SetMaxRequestsInFlight(-1).Validate())
	assert.Equal(t, errMaxBlocksPerHostNotPositive,
		opts.SetMaxBlocksInFlightPerHost(0).Validate())
	assert.Equal(t, errMaxRequestSizeToMemoryNegative,
		opts.SetMaxRequestSizeToMemory(-1).Validate())

	// Zero is a valid memory cap, it spills every remote request.
	assert.NoError(t, opts.SetMaxRequestSizeToMemory(0).Validate())
}

func TestOptionsSettersCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := newTestOptions(ctrl)
	changed := base.SetMaxBytesInFlight(1)
	assert.Equal(t, int64(1), changed.MaxBytesInFlight())
	assert.NotEqual(t, int64(1), base.MaxBytesInFlight())
}

func TestOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	assert.Equal(t, int64(48*1024*1024), opts.MaxBytesInFlight())
	assert.Equal(t, int64(200*1024*1024), opts.MaxRequestSizeToMemory())
	assert.True(t, opts.DetectCorruption())
	assert.False(t, opts.DetectCorruptionUseExtraMemory())
	assert.False(t, opts.BatchFetchEnabled())
	assert.True(t, opts.HostLocalFetchEnabled())
	assert.Nil(t, opts.StreamWrapperFn())
	assert.Nil(t, opts.TempFileRegistry())
}
