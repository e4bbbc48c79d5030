package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"runtime/debug"
	"time"
)

// connState is the position of a connection in its request cycle.
type connState int

const (
	stateIdle connState = iota
	stateFraming
	stateParsed
	stateDispatching
	stateResponding
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFraming:
		return "framing"
	case stateParsed:
		return "parsed"
	case stateDispatching:
		return "dispatching"
	case stateResponding:
		return "responding"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// conn drives one accepted stream through repeated request cycles. Plain
// and TLS streams look the same here.
type conn struct {
	ctx     context.Context
	nc      net.Conn
	cfg     *Config
	handler Handler
	log     *log.Logger

	arena *Arena
	scan  Scanner
	req   Request
	state connState
	vec   [2][]byte
}

func newConn(nc net.Conn, cfg *Config, h Handler) *conn {
	c := &conn{
		ctx:     context.Background(),
		nc:      nc,
		cfg:     cfg,
		handler: h,
		log:     cfg.Logger,
		arena:   acquireArena(cfg.ArenaSize),
	}
	c.req.src = c
	c.req.maxBody = cfg.MaxBodySize
	c.req.remote = nc.RemoteAddr()
	return c
}

// serve runs request cycles until the connection ends, then releases the
// stream and the arena. The returned error says why; nil means an orderly
// close requested by either side.
func (c *conn) serve(ctx context.Context) error {
	c.ctx = ctx
	err := c.run(ctx)
	if err != nil && ctx.Err() == nil {
		logConnError(c.log, c.req.remote.String(), c.state, err, c.cfg.EnableLogging)
	}
	c.close()
	return err
}

func (c *conn) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.state = stateFraming
		if err := c.frame(); err != nil {
			if KindOf(err) == KindBuildReq {
				c.writeRaw(badRequestBytes)
			}
			return err
		}

		c.state = stateParsed
		if err := c.req.parse(c.arena, c.scan.Lines(), c.scan.BodyStart()); err != nil {
			c.writeRaw(badRequestBytes)
			return err
		}

		c.state = stateDispatching
		resp := c.dispatch()

		c.state = stateResponding
		bodyErr := c.req.bodyErr
		switch {
		case bodyErr == nil:
			// unread body bytes must go before the next request is framed
			if _, err := c.req.Body(); err != nil {
				if KindOf(err) == KindBuildReq {
					c.writeRaw(badRequestBytes)
				}
				return err
			}
		case KindOf(bodyErr) != KindBuildReq:
			return bodyErr
		}

		// after a failed body read the stream cannot be framed again
		keepAlive := c.cfg.EnableKeepAlive && !resp.Close && !c.req.WantsClose() && bodyErr == nil
		if c.cfg.EnableLogging {
			logRequest(c.log, c.req.Method(), c.req.Path(), resp.Status)
		}
		head := equalFoldASCII(c.req.MethodBytes(), "HEAD")
		if err := c.write(resp, keepAlive, head); err != nil {
			return err
		}
		if !keepAlive {
			return bodyErr
		}

		c.arena.Discard(c.req.consumed())
		c.state = stateIdle
	}
}

// frame reads until the scanner has found the end of the header block.
// Bytes left over from the previous request are scanned first.
func (c *conn) frame() error {
	c.scan.Reset()
	if c.arena.Len() > 0 && c.scan.Scan(c.arena.Bytes()) {
		return c.checkHead(c.scan.BodyStart())
	}
	for {
		if err := c.checkHead(c.arena.Len()); err != nil {
			return err
		}
		if err := c.fill("frame"); err != nil {
			return err
		}
		if c.scan.Scan(c.arena.Bytes()) {
			return c.checkHead(c.scan.BodyStart())
		}
	}
}

func (c *conn) checkHead(n int) error {
	if n > c.cfg.MaxHeaderSize {
		return newError(KindBuildReq, "frame", ErrHeadersTooLarge)
	}
	return nil
}

// fill performs one deadline-bounded read into the arena tail.
func (c *conn) fill(op string) error {
	if err := c.ctx.Err(); err != nil {
		return newError(KindIO, op, err)
	}
	space := c.arena.FreeSpace()
	if err := c.nc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return classifyReadError(op, err)
	}
	// shutdown may have set an immediate deadline that the line above replaced
	if err := c.ctx.Err(); err != nil {
		return newError(KindIO, op, err)
	}
	n, err := c.nc.Read(space)
	c.arena.Commit(n)
	if n > 0 {
		return nil
	}
	return classifyReadError(op, err)
}

func classifyReadError(op string, err error) error {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return newError(KindEOF, op, io.EOF)
	case errors.As(err, &ne) && ne.Timeout():
		return newError(KindTimeout, op, err)
	default:
		return newError(KindIO, op, err)
	}
}

// dispatch hands the request to the handler and turns a panic into a 500.
func (c *conn) dispatch() (resp *Response) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Printf("PANIC recovered: %v\n%s", err, debug.Stack())
			resp = Serve500()
		}
	}()
	resp = c.handler.Dispatch(&c.req)
	if resp == nil {
		resp = Serve500()
	}
	return resp
}

// write sends the head and body with one vectored write.
func (c *conn) write(resp *Response, keepAlive, head bool) error {
	buf := getResponseBuffer()
	defer putResponseBuffer(buf)

	resp.writeHead(buf, keepAlive)
	bufs := net.Buffers(c.vec[:0])
	bufs = append(bufs, buf.Bytes())
	if !head && len(resp.Body) > 0 {
		bufs = append(bufs, resp.Body)
	}
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return newError(KindIO, "write", err)
	}
	if _, err := bufs.WriteTo(c.nc); err != nil {
		return newError(KindIO, "write", err)
	}
	return nil
}

// writeRaw is a best-effort write of a literal response before closing.
func (c *conn) writeRaw(p []byte) {
	c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	c.nc.Write(p)
}

func (c *conn) close() {
	c.state = stateClosed
	c.nc.Close()
	c.arena.Release()
}
