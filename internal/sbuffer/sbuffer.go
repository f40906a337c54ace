// Package sbuffer implements the shared bounded-lifetime producer/consumer
// buffer coupling one producer (the connection manager) to an arbitrary
// fixed set of independent readers.
//
// This is a deliberate redesign of the single-consumer buffer it replaces:
// every record inserted is delivered to every registered reader exactly
// once, and a node is reclaimed only after all readers have observed it.
package sbuffer

import (
	"container/list"
	"errors"
	"sync"

	"github.com/ekiciact/SensorNet-Manager/internal/record"
)

// ErrClosed indicates Insert was called after Close.
var ErrClosed = errors.New("sbuffer: closed")

// ErrCapacityExceeded indicates the buffer has reached its configured
// maximum depth. The Go analogue of the original's node-allocation failure:
// a node that cannot be admitted is reported to the producer as an error
// instead of silently blocking forever.
var ErrCapacityExceeded = errors.New("sbuffer: capacity exceeded")

// End is returned by Remove once the buffer is closed and reader has no
// further unread records.
var End = errors.New("sbuffer: end of stream")

// node wraps one queued record with a per-reader "read" flag.
type node struct {
	rec    record.Reading
	unread map[string]bool // reader id -> still unread
}

// Buffer is a FIFO queue with per-reader fan-out.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    *list.List // of *node, oldest first
	readers  map[string]struct{}
	closed   bool
	maxDepth int // 0 = unbounded
}

// New creates an empty Buffer registered for exactly the given reader IDs.
// maxDepth bounds the number of unreclaimed nodes; 0 means unbounded.
func New(maxDepth int, readerIDs ...string) *Buffer {
	b := &Buffer{
		items:    list.New(),
		readers:  make(map[string]struct{}, len(readerIDs)),
		maxDepth: maxDepth,
	}
	for _, id := range readerIDs {
		b.readers[id] = struct{}{}
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Insert appends rec to the buffer. It never blocks on reader progress.
// Returns ErrClosed if the buffer has been closed, or ErrCapacityExceeded
// if maxDepth would be exceeded.
func (b *Buffer) Insert(rec record.Reading) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if b.maxDepth > 0 && b.items.Len() >= b.maxDepth {
		return ErrCapacityExceeded
	}

	unread := make(map[string]bool, len(b.readers))
	for id := range b.readers {
		unread[id] = true
	}

	b.items.PushBack(&node{rec: rec, unread: unread})
	b.cond.Broadcast()

	return nil
}

// Remove returns the next unread record for readerID, blocking until one
// is available or the buffer is closed. Once closed and no unread record
// remains for readerID, Remove returns End.
func (b *Buffer) Remove(readerID string) (record.Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if _, ok := b.readers[readerID]; !ok {
			return record.Reading{}, errUnknownReader(readerID)
		}

		for e := b.items.Front(); e != nil; e = e.Next() {
			n := e.Value.(*node)
			if !n.unread[readerID] {
				continue
			}

			n.unread[readerID] = false
			rec := n.rec

			if allRead(n) {
				b.items.Remove(e)
			}

			return rec, nil
		}

		if b.closed {
			return record.Reading{}, End
		}

		b.cond.Wait()
	}
}

// Depth returns the number of unreclaimed nodes currently queued, for
// metrics reporting. It does not distinguish per-reader backlog.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Len()
}

// Close marks the buffer terminal and wakes every blocked Remove call.
// Close is a happens-after barrier: every Insert that returned nil before
// Close was called is visible to Remove after Close returns.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Free reclaims internal state. Calling Free while a reader is still
// blocked in Remove is undefined behavior, matching the original
// contract.
func (b *Buffer) Free() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items.Init()
	b.readers = nil
}

func allRead(n *node) bool {
	for _, unread := range n.unread {
		if unread {
			return false
		}
	}
	return true
}

type unknownReaderError struct{ readerID string }

func (e *unknownReaderError) Error() string {
	return "sbuffer: unknown reader " + e.readerID
}

func errUnknownReader(readerID string) error {
	return &unknownReaderError{readerID: readerID}
}
