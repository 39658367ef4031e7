// File: internal/registry/registry.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity endpoint registry. Maps OS handles back to the endpoint that
// owns them and releases handles in a fixed order when an endpoint goes away.

package registry

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
	"github.com/momentics/socev/api"
)

// Role classifies what a handle is to its endpoint.
type Role uint8

const (
	RolePrimary Role = iota
	RoleTimer
	RoleRecvTimer
	RoleSendTimer
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleTimer:
		return "timer"
	case RoleRecvTimer:
		return "recv_timer"
	case RoleSendTimer:
		return "send_timer"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Handle is an OS descriptor the registry can release.
type Handle interface {
	FD() int
	Close() error
}

// Ref identifies a slot together with the generation that was live when the
// reference was handed out.
type Ref struct {
	Slot uint32
	Gen  uint32
}

// ID packs the reference into a single value; never zero for a valid Ref.
func (r Ref) ID() uint64 { return uint64(r.Gen)<<32 | uint64(r.Slot) }

// RefFromID is the inverse of Ref.ID.
func RefFromID(id uint64) Ref {
	return Ref{Slot: uint32(id), Gen: uint32(id >> 32)}
}

type binding struct {
	h    Handle
	role Role
}

type slot[E any] struct {
	value    E
	gen      uint32
	live     bool
	bindings []binding
}

type owner struct {
	slot uint32
	role Role
}

// Registry owns up to a fixed number of endpoints of type E.
// It is not safe for concurrent use.
type Registry[E any] struct {
	mux   api.Multiplexer
	slots []slot[E]
	free  *queue.Queue // FIFO of free slot indexes
	byFD  map[int]owner
	live  int
}

// New creates a registry with room for capacity endpoints whose handles are
// registered with mux.
func New[E any](mux api.Multiplexer, capacity int) (*Registry[E], error) {
	if capacity <= 0 {
		return nil, api.ConfigError("registry: capacity must be positive, got %d", capacity)
	}
	if mux == nil {
		return nil, api.ConfigError("registry: nil multiplexer")
	}
	r := &Registry[E]{
		mux:   mux,
		slots: make([]slot[E], capacity),
		free:  queue.New(),
		byFD:  make(map[int]owner, capacity*2),
	}
	for i := range r.slots {
		r.slots[i].gen = 1
		r.free.Add(uint32(i))
	}
	return r, nil
}

// Insert stores value in a free slot.
func (r *Registry[E]) Insert(value E) (Ref, error) {
	if r.free.Length() == 0 {
		return Ref{}, api.NewError(api.ErrCodeCapacityExceeded, "registry full").
			WithContext("capacity", len(r.slots))
	}
	idx := r.free.Remove().(uint32)
	s := &r.slots[idx]
	s.value = value
	s.live = true
	s.bindings = s.bindings[:0]
	r.live++
	return Ref{Slot: idx, Gen: s.gen}, nil
}

func (r *Registry[E]) lookup(ref Ref) (*slot[E], error) {
	if int(ref.Slot) >= len(r.slots) {
		return nil, api.ErrStaleEndpoint
	}
	s := &r.slots[ref.Slot]
	if !s.live || s.gen != ref.Gen {
		return nil, api.ErrStaleEndpoint
	}
	return s, nil
}

// Attach registers h with the multiplexer and records it as belonging to ref
// in the given role. Attach takes ownership of h: on failure h is closed.
func (r *Registry[E]) Attach(ref Ref, h Handle, role Role, interest api.Interest) error {
	s, err := r.lookup(ref)
	if err != nil {
		_ = h.Close()
		return err
	}
	fd := h.FD()
	if _, dup := r.byFD[fd]; dup {
		_ = h.Close()
		return fmt.Errorf("registry: fd %d: %w", fd, api.ErrAlreadyExists)
	}
	if err := r.mux.Register(fd, interest); err != nil {
		_ = h.Close()
		return err
	}
	r.byFD[fd] = owner{slot: ref.Slot, role: role}
	s.bindings = append(s.bindings, binding{h: h, role: role})
	return nil
}

// Classify resolves a ready descriptor to its endpoint by table lookup.
func (r *Registry[E]) Classify(fd int) (ref Ref, role Role, value E, ok bool) {
	o, found := r.byFD[fd]
	if !found {
		return ref, role, value, false
	}
	s := &r.slots[o.slot]
	return Ref{Slot: o.slot, Gen: s.gen}, o.role, s.value, true
}

// Get returns the value stored under ref.
func (r *Registry[E]) Get(ref Ref) (E, error) {
	s, err := r.lookup(ref)
	if err != nil {
		var zero E
		return zero, err
	}
	return s.value, nil
}

// Handle returns the handle attached to ref in the given role.
func (r *Registry[E]) Handle(ref Ref, role Role) (Handle, bool) {
	s, err := r.lookup(ref)
	if err != nil {
		return nil, false
	}
	for _, b := range s.bindings {
		if b.role == role {
			return b.h, true
		}
	}
	return nil, false
}

// Live reports whether ref still names a live endpoint.
func (r *Registry[E]) Live(ref Ref) bool {
	_, err := r.lookup(ref)
	return err == nil
}

// Erase releases the endpoint under ref. Each attached handle, in attach
// order, is dropped from the handle table, unregistered from the multiplexer
// and closed; only after that is the slot returned to the free list.
// Release continues past individual failures, which are joined.
func (r *Registry[E]) Erase(ref Ref) error {
	s, err := r.lookup(ref)
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range s.bindings {
		fd := b.h.FD()
		delete(r.byFD, fd)
		if err := r.mux.Unregister(fd); err != nil {
			errs = append(errs, err)
		}
		if err := b.h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s fd %d: %w", b.role, fd, err))
		}
	}
	var zero E
	s.value = zero
	s.bindings = s.bindings[:0]
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.live--
	r.free.Add(ref.Slot)
	return errors.Join(errs...)
}

// Each calls fn for every live endpoint in slot order until fn returns false.
func (r *Registry[E]) Each(fn func(ref Ref, value E) bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		if !fn(Ref{Slot: uint32(i), Gen: s.gen}, s.value) {
			return
		}
	}
}

// Len is the number of live endpoints.
func (r *Registry[E]) Len() int { return r.live }

// Cap is the fixed capacity.
func (r *Registry[E]) Cap() int { return len(r.slots) }

// Handles is the number of attached handles across all endpoints.
func (r *Registry[E]) Handles() int { return len(r.byFD) }

// Close erases every live endpoint.
func (r *Registry[E]) Close() error {
	var refs []Ref
	r.Each(func(ref Ref, _ E) bool {
		refs = append(refs, ref)
		return true
	})
	var errs []error
	for _, ref := range refs {
		if err := r.Erase(ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
