package notify

import (
	"fmt"
	"runtime/debug"
	"sync"

	"tfcview/internal/logging"
)

// Hub delivers values of one type to registered observers. Delivery is
// synchronous and the order between observers is unspecified.
type Hub[T any] struct {
	mu        sync.RWMutex
	observers map[uint64]func(T)
	nextID    uint64
	logger    logging.Logger
}

func NewHub[T any](logger logging.Logger) *Hub[T] {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub[T]{observers: map[uint64]func(T){}, logger: logger}
}

// Subscribe registers fn and returns the id Unsubscribe takes.
func (h *Hub[T]) Subscribe(fn func(T)) uint64 {
	if fn == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.observers[h.nextID] = fn
	return h.nextID
}

// Unsubscribe reports whether id was registered.
func (h *Hub[T]) Unsubscribe(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[id]; !ok {
		return false
	}
	delete(h.observers, id)
	return true
}

// Publish calls every observer with value. A panicking observer is logged
// and skipped.
func (h *Hub[T]) Publish(value T) {
	h.mu.RLock()
	observers := make([]func(T), 0, len(h.observers))
	for _, fn := range h.observers {
		observers = append(observers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range observers {
		h.safeCall(fn, value)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub[T]) safeCall(fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("observer_panicked", logging.F("panic", fmt.Sprint(r)), logging.F("stack", string(debug.Stack())))
		}
	}()
	fn(value)
}
