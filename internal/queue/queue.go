package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// ReceiptQueue is the FIFO between receipt ingestion and the reconciler.
// Pop returns (nil, nil) when the queue is empty.
type ReceiptQueue interface {
	Push(ctx context.Context, r model.Receipt) error
	Pop(ctx context.Context) (*model.Receipt, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// InMemoryQueue is an unbounded, process-local FIFO. Contents are lost on
// restart.
type InMemoryQueue struct {
	mu    sync.Mutex
	items []model.Receipt
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

func (q *InMemoryQueue) Push(_ context.Context, r model.Receipt) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
	return nil
}

func (q *InMemoryQueue) Pop(_ context.Context) (*model.Receipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	head := q.items[0]
	q.items[0] = model.Receipt{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return &head, nil
}

func (q *InMemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *InMemoryQueue) Close() error { return nil }

func encode(r model.Receipt) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*model.Receipt, error) {
	var r model.Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

var _ ReceiptQueue = (*InMemoryQueue)(nil)
