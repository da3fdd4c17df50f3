package permission

import (
	"errors"
	"sync"
)

// RoleManager maps role names to permission masks built against a frozen
// [Registry]. Roles are versioned: bumping the version after a
// redefinition lets token validation detect stale permission snapshots.
//
// RoleManager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RoleManager struct {
	registry *Registry

	mu      sync.RWMutex
	roles   map[string]Mask
	version int64
	frozen  bool
}

// NewRoleManager creates a RoleManager bound to the given registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask),
		version:  1,
	}
}

// RegisterRole defines a role as the union of the named permissions.
// Every permission must already exist in the registry.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames ...string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered: " + roleName)
	}

	mask, err := rm.registry.MaskOf(permissionNames...)
	if err != nil {
		return err
	}

	rm.roles[roleName] = mask
	return nil
}

// MaskFor returns the mask for the named role, or false for unknown roles.
func (rm *RoleManager) MaskFor(roleName string) (Mask, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Version returns the current role definition version. It is embedded in
// issued tokens so a redefinition can invalidate old snapshots.
func (rm *RoleManager) Version() int64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.version
}

// BumpVersion advances the role definition version. Call after redefining
// roles on a live deployment.
func (rm *RoleManager) BumpVersion() int64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.version++
	return rm.version
}

/*
====================================
FREEZE
*/

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
