package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler manages graceful shutdown: the first SIGINT/SIGTERM cancels the
// context and runs the cleanup functions, a second one exits immediately.
type Handler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cleanupFns []func()
	mu         sync.Mutex
	once       sync.Once
	sigChan    chan os.Signal
	exit       func(code int)
}

// New creates a new shutdown handler
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 2),
		exit:    os.Exit,
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Cleanups run in reverse registration order.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFns = append(h.cleanupFns, fn)
}

// Listen starts listening for shutdown signals. onSignal, if not nil, is
// called with the first signal received.
func (h *Handler) Listen(onSignal func(os.Signal)) {
	signal.Notify(h.sigChan, os.Interrupt, syscall.SIGTERM)
	go h.watch(onSignal)
}

func (h *Handler) watch(onSignal func(os.Signal)) {
	sig, ok := <-h.sigChan
	if !ok {
		return
	}
	if onSignal != nil {
		onSignal(sig)
	}
	go h.Shutdown()

	if _, ok := <-h.sigChan; ok {
		h.exit(130)
	}
}

// Shutdown cancels the context and runs the cleanup functions. Only the
// first call has an effect.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanupFns
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// Stop stops listening for signals.
func (h *Handler) Stop() {
	signal.Stop(h.sigChan)
}
