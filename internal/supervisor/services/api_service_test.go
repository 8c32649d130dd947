// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/bookrec/internal/pipeline"
)

// mockHTTPServer is a test double for HTTPServer.
type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	started       chan struct{}
	stopCh        chan struct{}
	shutdownCount atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdownCount.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

// syncLog is a goroutine-safe log sink.
type syncLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncLog) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncLog) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// newTestAPIService wires svc to hand out the given servers in order.
func newTestAPIService(out *syncLog, snapshots SnapshotSource, servers ...*mockHTTPServer) (*APIService, *atomic.Int32) {
	svc := NewAPIService(http.NotFoundHandler(), APIServiceConfig{Addr: ":0", ShutdownTimeout: time.Second},
		snapshots, zerolog.New(out))
	var built atomic.Int32
	svc.newServer = func() HTTPServer {
		i := int(built.Add(1)) - 1
		return servers[i]
	}
	return svc, &built
}

func TestAPIService_Interface(t *testing.T) {
	var _ suture.Service = (*APIService)(nil)
	var _ HTTPServer = (*http.Server)(nil)
	var _ SnapshotSource = (*pipeline.Holder)(nil)

	svc := NewAPIService(http.NotFoundHandler(), APIServiceConfig{Addr: ":8080"}, nil, zerolog.Nop())
	if svc.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", svc.config.ShutdownTimeout)
	}
	if svc.String() != "api-service" {
		t.Errorf("String() = %q", svc.String())
	}
	srv, ok := svc.httpServer().(*http.Server)
	if !ok || srv.Addr != ":8080" || srv.Handler == nil {
		t.Errorf("httpServer() = %+v", srv)
	}
}

func TestAPIService_Serve(t *testing.T) {
	t.Run("graceful shutdown logs serving run", func(t *testing.T) {
		holder := &pipeline.Holder{}
		holder.Store(&pipeline.Snapshot{RunID: "run-42"})
		server := newMockHTTPServer()
		out := &syncLog{}
		svc, _ := newTestAPIService(out, holder, server)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-server.started
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if server.shutdownCount.Load() != 1 {
			t.Errorf("Shutdown called %d times", server.shutdownCount.Load())
		}
		if logs := out.String(); !strings.Contains(logs, "API stopped") || !strings.Contains(logs, `"run_id":"run-42"`) {
			t.Errorf("logs = %s", logs)
		}
	})

	t.Run("restart builds a fresh server", func(t *testing.T) {
		first, second := newMockHTTPServer(), newMockHTTPServer()
		svc, built := newTestAPIService(&syncLog{}, nil, first, second)

		for _, server := range []*mockHTTPServer{first, second} {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- svc.Serve(ctx) }()
			<-server.started
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v", err)
			}
		}
		if built.Load() != 2 {
			t.Errorf("built %d servers, want 2", built.Load())
		}
	})

	t.Run("listen failure is returned", func(t *testing.T) {
		server := newMockHTTPServer()
		server.listenErr = errors.New("address in use")
		svc, _ := newTestAPIService(&syncLog{}, nil, server)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, server.listenErr) {
			t.Errorf("Serve() = %v, want wrapped listen error", err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		server := newMockHTTPServer()
		server.shutdownErr = errors.New("connections stuck")
		svc, _ := newTestAPIService(&syncLog{}, nil, server)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		<-server.started
		cancel()

		if err := <-done; !errors.Is(err, server.shutdownErr) {
			t.Errorf("Serve() = %v, want shutdown error", err)
		}
	})
}
