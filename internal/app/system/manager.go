package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager registers services and drives their lifecycle. Services are started
// in registration order and stopped in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]bool
	started  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]bool)}
}

// Register adds a service. Names must be unique, and registration is rejected
// once the manager has started.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register %s: manager already started", svc.Name())
	}
	if m.names[svc.Name()] {
		return fmt.Errorf("service %s already registered", svc.Name())
	}
	m.names[svc.Name()] = true
	m.services = append(m.services, svc)
	return nil
}

// Start starts all registered services. On failure, services already started
// are stopped before returning.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = services[j].Stop(ctx)
			}
			m.mu.Lock()
			m.started = false
			m.mu.Unlock()
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops all services in reverse registration order, returning the first
// error encountered after attempting every service.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	var firstErr error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
