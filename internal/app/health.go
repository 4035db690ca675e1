package app

import (
	"sync/atomic"

	"github.com/florianilch/claudebridge/internal/proxy"
)

// Health tracks whether the proxy is accepting traffic. Safe for concurrent use.
type Health struct {
	ready atomic.Bool
}

var _ proxy.ReadinessChecker = (*Health)(nil)

// NewHealth returns a Health that reports not ready until the server is listening.
func NewHealth() *Health {
	return &Health{}
}

// SetReady is flipped on once the listener is bound and off when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady implements proxy.ReadinessChecker.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}
