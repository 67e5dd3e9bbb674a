package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// WriteFunc performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// ErrBatchWriterClosed is returned by Submit and Close once the writer is
// closed.
var ErrBatchWriterClosed = errors.New("batch writer closed")

// CommitError reports a batch of a load pass that did not commit. Every
// write of the batch is rolled back.
type CommitError struct {
	Pass  string
	Batch int // 1-based, in submission order
	Size  int
	// Write is the 0-based index of the failing write, or -1 when the
	// batch failed as a whole (begin, commit or cancellation).
	Write int
	Err   error
}

func (e *CommitError) Error() string {
	if e.Write >= 0 {
		return fmt.Sprintf("%s: batch %d: write %d of %d: %v", e.Pass, e.Batch, e.Write+1, e.Size, e.Err)
	}
	return fmt.Sprintf("%s: batch %d (%d writes): %v", e.Pass, e.Batch, e.Size, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

type batch struct {
	seq    int
	writes []WriteFunc
}

// BatchWriter runs the writes of one load pass, size writes per
// transaction, on a single committer goroutine. Batches commit in
// submission order and a failing write rolls back only its own batch.
// Once ctx is done, pending and later batches are dropped and counted as
// failed.
type BatchWriter struct {
	pass string
	db   *sql.DB
	ctx  context.Context
	size int

	mu     sync.Mutex
	buf    []WriteFunc
	seq    int
	closed bool

	queue chan batch
	done  chan struct{}

	// OnError, when set, sees every CommitError as it happens.
	OnError func(error)

	committed atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter starts a writer for the named pass. A nil db runs the
// writes with a nil transaction.
func NewBatchWriter(ctx context.Context, db *sql.DB, pass string, size int) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	bw := &BatchWriter{
		pass:  pass,
		db:    db,
		ctx:   ctx,
		size:  size,
		buf:   make([]WriteFunc, 0, size),
		queue: make(chan batch, 2),
		done:  make(chan struct{}),
	}
	go bw.committer()
	return bw
}

// Submit buffers a write. It blocks while two full batches wait for the
// committer and fails once ctx is done.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	if err := bw.ctx.Err(); err != nil {
		return err
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.size {
		bw.flushLocked()
	}
	return nil
}

// flushLocked assumes bw.mu is held.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	bw.seq++
	b := batch{seq: bw.seq, writes: bw.buf}
	bw.buf = make([]WriteFunc, 0, bw.size)

	if err := bw.ctx.Err(); err != nil {
		bw.fail(b, -1, err)
		return
	}
	select {
	case bw.queue <- b:
	case <-bw.ctx.Done():
		bw.fail(b, -1, bw.ctx.Err())
	}
}

func (bw *BatchWriter) fail(b batch, write int, err error) {
	bw.failed.Add(int64(len(b.writes)))
	cerr := &CommitError{Pass: bw.pass, Batch: b.seq, Size: len(b.writes), Write: write, Err: err}
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = cerr
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(cerr)
	}
}

func (bw *BatchWriter) committer() {
	defer close(bw.done)
	for b := range bw.queue {
		if err := bw.ctx.Err(); err != nil {
			bw.fail(b, -1, err)
			continue
		}
		if write, err := bw.commit(b.writes); err != nil {
			bw.fail(b, write, err)
			continue
		}
		bw.committed.Add(int64(len(b.writes)))
		bw.batches.Add(1)
	}
}

// commit returns the index of the failing write, or -1 when the
// transaction itself failed.
func (bw *BatchWriter) commit(writes []WriteFunc) (int, error) {
	if bw.db == nil {
		for i, w := range writes {
			if err := w(bw.ctx, nil); err != nil {
				return i, err
			}
		}
		return -1, nil
	}

	tx, err := bw.db.BeginTx(bw.ctx, nil)
	if err != nil {
		return -1, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()
	for i, w := range writes {
		if err := w(bw.ctx, tx); err != nil {
			return i, err
		}
	}
	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("commit: %w", err)
	}
	return -1, nil
}

// Committed returns the number of writes committed so far.
func (bw *BatchWriter) Committed() int { return int(bw.committed.Load()) }

// Failed returns the number of writes in batches that were rolled back or
// dropped.
func (bw *BatchWriter) Failed() int { return int(bw.failed.Load()) }

// Batches returns the number of committed transactions.
func (bw *BatchWriter) Batches() int { return int(bw.batches.Load()) }

// Close flushes the buffer, waits for the committer and returns the first
// CommitError of the pass.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	bw.flushLocked()
	bw.mu.Unlock()

	close(bw.queue)
	<-bw.done

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}
