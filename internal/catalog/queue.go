// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"container/heap"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
)

// ErrClosed is returned for commands submitted after the queue stopped.
var ErrClosed = errors.New("catalog: command queue closed")

// command is one unit of work executed by the queue worker.
type command struct {
	priority int
	seq      uint64
	name     string
	job      string
	run      func(db *sql.DB)
}

// commandHeap orders commands by priority, then by submission order.
type commandHeap []*command

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h commandHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commandHeap) Push(x any) { *h = append(*h, x.(*command)) }

func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

/*
Queue serializes every catalog read and write through a single worker.

The worker goroutine is the only code that touches the *sql.DB, so the
connection is single-writer by construction. Commands run end-to-end, one at a
time, lowest priority value first and FIFO among equals.
*/
type Queue struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	pending commandHeap
	seq     uint64
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newQueue(db *sql.DB, logger *slog.Logger) *Queue {
	queue := &Queue{
		db:     db,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go queue.loop()
	return queue
}

func (queue *Queue) push(cmd *command) error {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.closed {
		return ErrClosed
	}
	queue.seq++
	cmd.seq = queue.seq
	heap.Push(&queue.pending, cmd)

	select {
	case queue.wake <- struct{}{}:
	default:
	}
	return nil
}

func (queue *Queue) loop() {
	defer close(queue.done)

	for {
		queue.mu.Lock()
		if queue.pending.Len() == 0 {
			closed := queue.closed
			queue.mu.Unlock()
			if closed {
				return
			}
			<-queue.wake
			continue
		}
		cmd := heap.Pop(&queue.pending).(*command)
		queue.mu.Unlock()

		queue.execute(cmd)
	}
}

func (queue *Queue) execute(cmd *command) {
	defer func() {
		if r := recover(); r != nil {
			queue.logger.Error("catalog_command_panic",
				slog.String("command", cmd.name),
				slog.String("job_id", cmd.job),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	cmd.run(queue.db)
}

// Pending returns the number of queued commands not yet started.
func (queue *Queue) Pending() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return queue.pending.Len()
}

// Close stops accepting commands, drains the ones already queued and waits for the worker.
func (queue *Queue) Close() {
	queue.mu.Lock()
	if !queue.closed {
		queue.closed = true
		select {
		case queue.wake <- struct{}{}:
		default:
		}
	}
	queue.mu.Unlock()
	<-queue.done
}

type result[T any] struct {
	value T
	err   error
}

/*
Submit enqueues fn and blocks until the worker has run it.

The priority comes from [ctxutil.WithPriority] (default 999). A context
cancelled before the command starts skips it; a context cancelled while
waiting returns ctx.Err() and the command's result is discarded.
*/
func Submit[T any](ctx context.Context, queue *Queue, name string, fn func(ctx context.Context, db *sql.DB) (T, error)) (T, error) {
	var zero T
	reply := make(chan result[T], 1)

	cmd := &command{
		priority: ctxutil.GetPriority(ctx),
		name:     name,
		job:      ctxutil.GetJobID(ctx),
		run: func(db *sql.DB) {
			defer func() {
				if r := recover(); r != nil {
					reply <- result[T]{err: fmt.Errorf("catalog: %s panicked: %v", name, r)}
					panic(r)
				}
			}()
			if err := ctx.Err(); err != nil {
				reply <- result[T]{err: err}
				return
			}
			value, err := fn(ctx, db)
			reply <- result[T]{value: value, err: err}
		},
	}
	if err := queue.push(cmd); err != nil {
		return zero, err
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Exec is [Submit] for commands without a return value.
func Exec(ctx context.Context, queue *Queue, name string, fn func(ctx context.Context, db *sql.DB) error) error {
	_, err := Submit(ctx, queue, name, func(ctx context.Context, db *sql.DB) (struct{}, error) {
		return struct{}{}, fn(ctx, db)
	})
	return err
}

// Post enqueues fn without waiting for it. Failures are logged by the worker.
func Post(ctx context.Context, queue *Queue, name string, fn func(ctx context.Context, db *sql.DB) error) error {
	logger := queue.logger
	job := ctxutil.GetJobID(ctx)
	return queue.push(&command{
		priority: ctxutil.GetPriority(ctx),
		name:     name,
		job:      job,
		run: func(db *sql.DB) {
			if err := fn(context.WithoutCancel(ctx), db); err != nil {
				logger.Error("catalog_command_failed",
					slog.String("command", name),
					slog.String("job_id", job),
					slog.Any("error", err),
				)
			}
		},
	})
}
