package unwind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReverseOrder(t *testing.T) {
	var order []int
	var s Stack
	for i := 1; i <= 3; i++ {
		i := i
		s.Push(func() error { order = append(order, i); return nil })
	}
	require.NoError(t, s.Run())
	assert.Equal(t, []int{3, 2, 1}, order)

	// already run
	require.NoError(t, s.Run())
	assert.Len(t, order, 3)
}

func TestRunJoinsErrors(t *testing.T) {
	var s Stack
	a, b := errors.New("a"), errors.New("b")
	calls := 0
	s.Push(func() error { calls++; return a })
	s.Push(func() error { calls++; return b })
	err := s.Run()
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.Equal(t, 2, calls)
}

func TestDisarm(t *testing.T) {
	var s Stack
	s.Push(func() error { t.Fatal("should not run"); return nil })
	s.Disarm()
	require.NoError(t, s.Run())
}
