package shutdown

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestShutdownRunsCleanupsOnce(t *testing.T) {
	h := New()

	var order []int
	h.AddCleanup(func() { order = append(order, 1) })
	h.AddCleanup(func() { order = append(order, 2) })

	h.Shutdown()
	h.Shutdown()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("cleanup order = %v, want [2 1]", order)
	}
	select {
	case <-h.Context().Done():
	default:
		t.Error("context should be cancelled")
	}
}

func TestSignalTriggersShutdown(t *testing.T) {
	h := New()
	exited := make(chan int, 1)
	h.exit = func(code int) { exited <- code }

	got := make(chan os.Signal, 1)
	go h.watch(func(sig os.Signal) { got <- sig })

	h.sigChan <- syscall.SIGTERM
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after signal")
	}
	if sig := <-got; sig != syscall.SIGTERM {
		t.Errorf("onSignal got %v", sig)
	}

	h.sigChan <- os.Interrupt
	select {
	case code := <-exited:
		if code != 130 {
			t.Errorf("exit code = %d, want 130", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not force exit")
	}
}
