// Package unwind releases partially constructed resources in reverse order.
package unwind

import "errors"

// Stack collects release functions while a constructor acquires resources.
// On failure Run releases them last-acquired first; on success Disarm keeps
// them alive.
type Stack struct {
	fns []func() error
}

// Push records fn to be called by Run.
func (s *Stack) Push(fn func() error) {
	s.fns = append(s.fns, fn)
}

// Run calls the recorded functions in reverse order and forgets them.
func (s *Stack) Run() error {
	var errs []error
	for i := len(s.fns) - 1; i >= 0; i-- {
		if err := s.fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.fns = nil
	return errors.Join(errs...)
}

// Disarm forgets the recorded functions without calling them.
func (s *Stack) Disarm() {
	s.fns = nil
}
