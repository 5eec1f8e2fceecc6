package registry

import (
	"sync"
	"sync/atomic"

	"github.com/aretw0/roster/pkg/domain"
)

var (
	instanceMu sync.Mutex // serializes CreateInstance and DestroyInstance
	instance   atomic.Pointer[Manager]
)

// CreateInstance creates the process-wide registry.
// It returns domain.ErrRegistryExists if one is already live.
func CreateInstance(opts ...Option) (*Manager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance.Load() != nil {
		return nil, domain.ErrRegistryExists
	}
	m := New(opts...)
	instance.Store(m)
	m.logger.Info("Session registry created")
	return m, nil
}

// GetInstance returns the process-wide registry, or nil before CreateInstance.
func GetInstance() *Manager {
	return instance.Load()
}

// DestroyInstance tears down the process-wide registry.
// Every session must have been removed by its owner beforehand; otherwise
// domain.ErrRegistryNotEmpty is returned and the registry stays live.
func DestroyInstance() error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	m := instance.Load()
	if m == nil {
		return domain.ErrNoRegistry
	}
	if n := m.SessionCount(); n > 0 {
		m.logger.Error("Refusing to destroy session registry", "sessions", n)
		return domain.ErrRegistryNotEmpty
	}
	instance.Store(nil)
	m.logger.Info("Session registry destroyed")
	return nil
}
