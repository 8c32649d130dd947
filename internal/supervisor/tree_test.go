// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/sutureslog"
)

// syncBuffer guards a buffer written by supervisor goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("applies default values for zero config", func(t *testing.T) {
		tree := NewSupervisorTree(zerolog.Nop(), TreeConfig{})

		if tree.Root() == nil {
			t.Fatal("root supervisor should not be nil")
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want %+v", tree.config, DefaultTreeConfig())
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		tree := NewSupervisorTree(zerolog.Nop(), TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second})
		if tree.config.FailureThreshold != 2 || tree.config.FailureBackoff != time.Second {
			t.Errorf("config = %+v", tree.config)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	tree := NewSupervisorTree(zerolog.Nop(), TreeConfig{ShutdownTimeout: time.Second})
	trainSvc := newMockService("mock-training")
	apiSvc := newMockService("mock-api")
	tree.AddTrainingService(trainSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for (trainSvc.StartCount() == 0 || apiSvc.StartCount() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if trainSvc.StartCount() == 0 || apiSvc.StartCount() == 0 {
		t.Fatal("services were not started")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestSupervisorTreeRestartsAndLogs(t *testing.T) {
	var logs syncBuffer
	tree := NewSupervisorTree(zerolog.New(&logs), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := newMockService("flaky")
	failing.maxFails = 2
	panicking := newMockService("panicky")
	panicking.panicOnce.Store(true)
	tree.AddTrainingService(failing)
	tree.AddAPIService(panicking)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	for failing.StartCount() < 3 || panicking.StartCount() < 2 {
		select {
		case <-ctx.Done():
			t.Fatalf("restarts: flaky=%d panicky=%d", failing.StartCount(), panicking.StartCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-errCh

	out := logs.String()
	for _, want := range []string{
		`"component":"supervisor"`,
		`"level":"warn"`,
		`"level":"error"`,
		sutureslog.LogServiceTerminate,
		sutureslog.LogServicePanic,
		`"service_name":"flaky"`,
		"panicky",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s\n%s", want, out)
		}
	}
}
