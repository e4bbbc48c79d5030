package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// AcceptResult is one outcome of an accept call.
type AcceptResult struct {
	Conn net.Conn
	Err  error
}

// PollStream batches accepted connections. A single goroutine accepts into a
// channel as deep as the batch capacity; PollSome waits for the first ready
// result and then drains whatever else is already queued, so a burst of
// connects is handed over in one wake instead of one at a time.
type PollStream struct {
	ln       net.Listener
	capacity int
	results  chan AcceptResult
	done     chan struct{}
	once     sync.Once
}

func NewPollStream(ln net.Listener, capacity int) *PollStream {
	if capacity < 1 {
		capacity = 1
	}
	p := &PollStream{
		ln:       ln,
		capacity: capacity,
		results:  make(chan AcceptResult, capacity),
		done:     make(chan struct{}),
	}
	go p.acceptLoop()
	return p
}

func (p *PollStream) acceptLoop() {
	defer close(p.results)
	var delay time.Duration
	for {
		nc, err := p.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// a failing accept returns at once, back off before retrying
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, time.Second)
			}
			time.Sleep(delay)
		} else {
			delay = 0
		}
		select {
		case p.results <- AcceptResult{Conn: nc, Err: err}:
		case <-p.done:
			if nc != nil {
				nc.Close()
			}
			return
		}
	}
}

// PollSome blocks until at least one accept result is ready and returns up
// to the batch capacity of them. It fails with ErrListenerClosed once the
// listener is gone and every queued result was handed out.
func (p *PollStream) PollSome(ctx context.Context) ([]AcceptResult, error) {
	var first AcceptResult
	var ok bool
	select {
	case first, ok = <-p.results:
		if !ok {
			return nil, ErrListenerClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	batch := make([]AcceptResult, 1, p.capacity)
	batch[0] = first
	for len(batch) < p.capacity {
		select {
		case r, ok := <-p.results:
			if !ok {
				return batch, nil
			}
			batch = append(batch, r)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Close stops accepting and closes the listener. Queued but unclaimed
// connections are closed as well.
func (p *PollStream) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.ln.Close()
		go func() {
			for r := range p.results {
				if r.Conn != nil {
					r.Conn.Close()
				}
			}
		}()
	})
	return err
}

// Task is one member of a JoinSet.
type Task func(ctx context.Context) error

// JoinSet runs a batch of tasks as one unit that completes only when every
// member has finished.
type JoinSet struct {
	group   errgroup.Group
	pending atomic.Int64
	done    chan struct{}
	err     error
}

// Join starts every task and returns the set tracking them.
func Join(ctx context.Context, tasks ...Task) *JoinSet {
	j := &JoinSet{done: make(chan struct{})}
	j.pending.Store(int64(len(tasks)))
	for _, task := range tasks {
		j.group.Go(func() error {
			defer j.pending.Add(-1)
			return task(ctx)
		})
	}
	go func() {
		j.err = j.group.Wait()
		close(j.done)
	}()
	return j
}

// Done is closed once all members have finished.
func (j *JoinSet) Done() <-chan struct{} { return j.done }

// Pending is the number of members still running.
func (j *JoinSet) Pending() int { return int(j.pending.Load()) }

// Wait blocks until all members finished and returns the first error any
// of them returned.
func (j *JoinSet) Wait() error {
	<-j.done
	return j.err
}
