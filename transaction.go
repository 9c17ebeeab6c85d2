package df1

import (
	"context"
	"fmt"
	"sync"
)

// Pending is the handle of one request waiting for its reply. It resolves
// exactly once.
type Pending struct {
	Request PDU

	once sync.Once
	done chan result
}

type result struct {
	pdu PDU
	err error
}

// NewPending allocates the handle for req.
func NewPending(req PDU) *Pending {
	return &Pending{Request: req, done: make(chan result, 1)}
}

func (p *Pending) resolve(pdu PDU, err error) {
	p.once.Do(func() {
		p.done <- result{pdu: pdu, err: err}
	})
}

// Wait blocks until p resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) (PDU, error) {
	select {
	case r := <-p.done:
		return r.pdu, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TransactionManager tracks in-flight requests.
type TransactionManager interface {
	// NextID returns the next transaction id, wrapping at 0xFFFF.
	NextID() uint16
	Register(p *Pending, id uint16) error
	// Resolve removes and returns the handle waiting for id.
	Resolve(id uint16) (*Pending, bool)
	// CancelAll fails every registered handle with reason, oldest first.
	CancelAll(reason error)
	Len() int
}

type transactionCounter struct {
	id uint16
}

func (c *transactionCounter) NextID() uint16 {
	c.id++
	return c.id
}

// keyedTransactions resolves replies by the transaction id they echo.
type keyedTransactions struct {
	transactionCounter
	pending map[uint16]*Pending
	order   []uint16
}

// NewKeyedTransactionManager resolves by id.
func NewKeyedTransactionManager() TransactionManager {
	return &keyedTransactions{pending: make(map[uint16]*Pending)}
}

func (t *keyedTransactions) Register(p *Pending, id uint16) error {
	if _, ok := t.pending[id]; ok {
		return fmt.Errorf("df1: transaction '%v' is already pending", id)
	}
	t.pending[id] = p
	t.order = append(t.order, id)
	return nil
}

func (t *keyedTransactions) Resolve(id uint16) (*Pending, bool) {
	p, ok := t.pending[id]
	if !ok {
		return nil, false
	}
	delete(t.pending, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (t *keyedTransactions) CancelAll(reason error) {
	order := t.order
	t.order = nil
	for _, id := range order {
		p := t.pending[id]
		delete(t.pending, id)
		p.resolve(nil, reason)
	}
}

func (t *keyedTransactions) Len() int {
	return len(t.pending)
}

// fifoTransactions resolves replies in the order requests were registered.
type fifoTransactions struct {
	transactionCounter
	queue []*Pending
}

// NewFIFOTransactionManager ignores ids and resolves the oldest handle.
func NewFIFOTransactionManager() TransactionManager {
	return &fifoTransactions{}
}

func (t *fifoTransactions) Register(p *Pending, _ uint16) error {
	t.queue = append(t.queue, p)
	return nil
}

func (t *fifoTransactions) Resolve(uint16) (*Pending, bool) {
	if len(t.queue) == 0 {
		return nil, false
	}
	p := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	return p, true
}

func (t *fifoTransactions) CancelAll(reason error) {
	queue := t.queue
	t.queue = nil
	for _, p := range queue {
		p.resolve(nil, reason)
	}
}

func (t *fifoTransactions) Len() int {
	return len(t.queue)
}
