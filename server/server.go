package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// Server is the context shared by all connections: configuration, the
// dispatch handler and the table of live connections. It holds no global
// state, so several servers can run in one process.
type Server struct {
	cfg     *Config
	handler Handler

	conns   *xsync.MapOf[net.Conn, *conn]
	limit   *semaphore.Weighted
	batches sync.WaitGroup
}

// New creates a server dispatching to h. A nil cfg means DefaultConfig.
func New(cfg *Config, h Handler) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:     cfg,
		handler: h,
		conns:   xsync.NewMapOf[net.Conn, *conn](xsync.WithPresize(cfg.AcceptBatch)),
	}
	if cfg.MaxConns > 0 {
		s.limit = semaphore.NewWeighted(int64(cfg.MaxConns))
	}
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return newError(KindIO, "listen", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln in batches until ctx is cancelled or
// the listener fails, then waits for every connection to finish. Accept
// errors for single connections are logged and skipped. Serve returns nil
// after a cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ps := NewPollStream(ln, s.cfg.AcceptBatch)
	stop := context.AfterFunc(ctx, func() { ps.Close() })
	defer stop()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var err error
	for {
		var batch []AcceptResult
		batch, err = ps.PollSome(ctx)
		if err != nil {
			break
		}
		s.start(connCtx, batch)
	}

	ps.Close()
	// connections re-check their context after arming a read deadline
	cancel()
	s.interrupt()
	s.batches.Wait()

	if ctx.Err() != nil || errors.Is(err, ErrListenerClosed) {
		return nil
	}
	return err
}

// start turns one accept batch into a joined set of connection tasks.
func (s *Server) start(ctx context.Context, batch []AcceptResult) {
	tasks := make([]Task, 0, len(batch))
	for _, r := range batch {
		if r.Err != nil {
			s.cfg.Logger.Print(color.RedString("accept: %v", r.Err))
			continue
		}
		if s.limit != nil && !s.limit.TryAcquire(1) {
			r.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			r.Conn.Write(serviceUnavailableBytes)
			r.Conn.Close()
			continue
		}
		c := newConn(r.Conn, s.cfg, s.handler)
		s.conns.Store(r.Conn, c)
		tasks = append(tasks, s.task(c))
	}
	if len(tasks) == 0 {
		return
	}

	j := Join(ctx, tasks...)
	s.batches.Add(1)
	go func() {
		defer s.batches.Done()
		j.Wait()
	}()
}

func (s *Server) task(c *conn) Task {
	return func(ctx context.Context) error {
		defer func() {
			s.conns.Delete(c.nc)
			if s.limit != nil {
				s.limit.Release(1)
			}
		}()
		// the error has been logged by the connection itself
		c.serve(ctx)
		return nil
	}
}

// interrupt wakes connections blocked in a read so they notice shutdown.
func (s *Server) interrupt() {
	now := time.Now()
	s.conns.Range(func(nc net.Conn, _ *conn) bool {
		nc.SetReadDeadline(now)
		return true
	})
}

// ActiveConns is the number of connections currently being served.
func (s *Server) ActiveConns() int { return s.conns.Size() }
