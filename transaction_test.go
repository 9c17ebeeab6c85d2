package df1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOTransactions(t *testing.T) {
	tm := NewFIFOTransactionManager()
	a := NewPending(&ParameterReadRequest{Parameter: 1})
	b := NewPending(&ParameterReadRequest{Parameter: 2})
	c := NewPending(&ParameterReadRequest{Parameter: 3})
	for _, p := range []*Pending{a, b, c} {
		require.NoError(t, tm.Register(p, tm.NextID()))
	}
	assert.Equal(t, 3, tm.Len())

	for _, want := range []*Pending{a, b, c} {
		// ids are ignored
		got, ok := tm.Resolve(0)
		require.True(t, ok)
		assert.Same(t, want, got)
	}
	_, ok := tm.Resolve(0)
	assert.False(t, ok)
	assert.Equal(t, 0, tm.Len())
}

func TestKeyedTransactions(t *testing.T) {
	tm := NewKeyedTransactionManager()
	a := NewPending(&ProtectedReadRequest{})
	b := NewPending(&ProtectedReadRequest{})
	require.NoError(t, tm.Register(a, 1))
	require.NoError(t, tm.Register(b, 2))
	assert.Error(t, tm.Register(NewPending(&ProtectedReadRequest{}), 2))

	got, ok := tm.Resolve(2)
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = tm.Resolve(2)
	assert.False(t, ok)
	_, ok = tm.Resolve(3)
	assert.False(t, ok)
	assert.Equal(t, 1, tm.Len())
}

func TestCancelAll(t *testing.T) {
	errLost := errors.New("lost")
	for name, tm := range map[string]TransactionManager{
		"keyed": NewKeyedTransactionManager(),
		"fifo":  NewFIFOTransactionManager(),
	} {
		t.Run(name, func(t *testing.T) {
			var pending []*Pending
			for _, id := range []uint16{9, 3, 5} {
				p := NewPending(&ProtectedReadRequest{})
				require.NoError(t, tm.Register(p, id))
				pending = append(pending, p)
			}
			tm.CancelAll(errLost)
			assert.Equal(t, 0, tm.Len())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			for _, p := range pending {
				_, err := p.Wait(ctx)
				assert.ErrorIs(t, err, errLost)
			}
		})
	}
}

func TestTransactionIDWraps(t *testing.T) {
	tm := NewKeyedTransactionManager()
	var last uint16
	for i := 0; i < 0x10000; i++ {
		last = tm.NextID()
	}
	assert.Equal(t, uint16(0), last)
	assert.Equal(t, uint16(1), tm.NextID())
}

func TestPendingResolvesOnce(t *testing.T) {
	p := NewPending(&ProtectedReadRequest{})
	reply := &Reply{}
	p.resolve(reply, nil)
	p.resolve(nil, ErrTimeout)

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, reply, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPending(&ProtectedReadRequest{}).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
