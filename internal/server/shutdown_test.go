package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownHandler_RunsHooksInPriorityOrder(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)

	var order []string
	h.RegisterHook("store", 90, func(context.Context) error {
		order = append(order, "store")
		return nil
	})
	h.RegisterHook("http", 10, func(context.Context) error {
		order = append(order, "http")
		return nil
	})
	h.RegisterHook("tracing", 80, func(context.Context) error {
		order = append(order, "tracing")
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Wait()

	want := []string{"http", "tracing", "store"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShutdownHandler_HookErrorDoesNotStopOthers(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)

	var ran atomic.Bool
	h.RegisterHook("broken", 10, func(context.Context) error {
		return errors.New("flush failed")
	})
	h.RegisterHook("after", 20, func(context.Context) error {
		ran.Store(true)
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Wait()

	if !ran.Load() {
		t.Fatal("later hook must still run")
	}
}

func TestShutdownHandler_ShutdownIsIdempotent(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)
	h.Start()
	h.Shutdown()
	h.Shutdown()
	h.Wait()
}
