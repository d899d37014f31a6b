/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package executor

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biasedbit/bbhttp"
)

func TestSubmitDispatchesImmediatelyUnderMaxParallel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := New("t1", WithMaxParallel(2))
	req := bbhttp.NewRequest(bbhttp.GET, server.URL)

	done := make(chan struct{})
	req.OnFinish(func(*bbhttp.Request) { close(done) })

	assert.True(t, e.Submit(req))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request never finished")
	}
	assert.NoError(t, req.Err())
	assert.Equal(t, http.StatusOK, req.Response().Code)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := New("t2", WithMaxParallel(1), WithMaxQueue(1))

	var wg sync.WaitGroup
	submit := func() bool {
		req := bbhttp.NewRequest(bbhttp.GET, server.URL)
		wg.Add(1)
		req.OnFinish(func(*bbhttp.Request) { wg.Done() })
		ok := e.Submit(req)
		if !ok {
			wg.Done() // a rejected request fires no callback
		}
		return ok
	}

	assert.True(t, submit())  // starts immediately
	assert.True(t, submit())  // queued
	assert.False(t, submit()) // active(1)+queued(1) >= max_parallel(1)+max_queue(1)

	wg.Wait()
}

func TestCancelQueuedRequestFiresFinishWithoutTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := New("t3", WithMaxParallel(1), WithMaxQueue(4))

	blocker := bbhttp.NewRequest(bbhttp.GET, server.URL)
	blockerDone := make(chan struct{})
	blocker.OnFinish(func(*bbhttp.Request) { close(blockerDone) })
	require.True(t, e.Submit(blocker))

	queued := bbhttp.NewRequest(bbhttp.GET, server.URL)
	queuedDone := make(chan struct{})
	queued.OnFinish(func(*bbhttp.Request) { close(queuedDone) })
	require.True(t, e.Submit(queued))

	queued.Cancel()

	select {
	case <-queuedDone:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled queued request never finished")
	}
	assert.ErrorIs(t, queued.Err(), bbhttp.ErrCancelled)
	assert.Nil(t, queued.Response())

	<-blockerDone
}

func TestFIFOOrderingWithMaxParallelOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := New("t4", WithMaxParallel(1), WithMaxQueue(4))

	var mu sync.Mutex
	var startOrder []int
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		i := i
		req := bbhttp.NewRequest(bbhttp.GET, server.URL)
		wg.Add(1)
		req.OnStart(func(*bbhttp.Request) {
			mu.Lock()
			startOrder = append(startOrder, i)
			mu.Unlock()
		})
		req.OnFinish(func(*bbhttp.Request) { wg.Done() })
		require.True(t, e.Submit(req))
	}

	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, startOrder)
}

func TestShutdownRejectsFurtherSubmissions(t *testing.T) {
	e := New("t5")
	require.NoError(t, e.Shutdown())

	req := bbhttp.NewRequest(bbhttp.GET, "http://example.invalid/")
	assert.False(t, e.Submit(req))
}

func TestSharedReturnsSameInstance(t *testing.T) {
	assert.Same(t, Shared(), Shared())
}
