package permission

import (
	"errors"
	"sync"
)

// Registry maps permission names to bit positions within a [Mask].
// Registrations happen once at startup; call [Registry.Freeze] before
// handing the registry to anything that evaluates permissions.
//
//	Docs: docs/permission.md
type Registry struct {
	rootReserved bool
	rootBit      uint

	mu        sync.RWMutex
	nameToBit map[string]uint
	bitToName map[uint]string
	frozen    bool
}

// NewRegistry creates a permission [Registry]. rootReserved reserves the
// highest bit for a super-admin root permission that no ordinary
// registration can claim.
//
//	Docs: docs/permission.md
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		nameToBit:    make(map[string]uint),
		bitToName:    make(map[uint]string),
	}
	if rootReserved {
		r.rootBit = MaskBits - 1
	}
	return r
}

// Register assigns the next available bit to the named permission and
// returns the assigned index. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, errors.New("registry frozen")
	}
	if name == "" {
		return 0, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return 0, errors.New("permission already registered: " + name)
	}

	nextBit := uint(len(r.nameToBit))

	if r.rootReserved && nextBit >= r.rootBit {
		return 0, errors.New("permission limit exceeded (root bit reserved)")
	}
	if !r.rootReserved && nextBit >= MaskBits {
		return 0, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (uint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit uint) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// MaskOf builds a Mask from permission names. Every name must be
// registered; the first unknown name aborts the build.
func (r *Registry) MaskOf(names ...string) (Mask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var m Mask
	for _, name := range names {
		bit, ok := r.nameToBit[name]
		if !ok {
			return Mask{}, errors.New("permission not registered: " + name)
		}
		m, _ = m.Set(bit)
	}
	return m, nil
}

// Freeze prevents further registrations. Must be called before the
// registry is used for evaluation.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootBit returns the reserved root permission bit, or false if root-bit
// reservation is disabled.
func (r *Registry) RootBit() (uint, bool) {
	if !r.rootReserved {
		return 0, false
	}
	return r.rootBit, true
}
