package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cancelling the context while a request is in flight must not let the
// serve call return before that request's handler has finished.
func TestServeHTTP_WaitsForInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		finished.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &GRPCServer{logger: zerolog.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.serveHTTP(ctx, lis, handler) }()

	respDone := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+lis.Addr().String()+"/v1/commands/mint", "application/json", nil)
		if err != nil {
			respDone <- 0
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		respDone <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	cancel()

	select {
	case <-served:
		t.Fatal("serve returned while a request was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after the request drained")
	}
	assert.True(t, finished.Load())
	assert.Equal(t, http.StatusOK, <-respDone)
}
