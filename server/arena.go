package server

import "fmt"

const (
	// defaultArenaSize is the initial capacity of a connection arena.
	defaultArenaSize = 1024
	// minFreeSpace is the least tail space handed to a read call.
	minFreeSpace = 32
)

// Arena is a growable byte region owned by exactly one connection.
//
// Bytes in [0, Len()) have been written, [Len(), Cap()) is scratch space for
// the next read. Capacity only grows, and growth preserves written bytes at
// the same offsets, so offset spans survive it. Clearing or discarding bumps
// the generation, which invalidates every span issued before.
type Arena struct {
	buf    []byte
	n      int
	gen    uint64
	pooled bool
}

// NewArena allocates an arena with the given capacity.
func NewArena(capacity int) *Arena {
	if capacity < minFreeSpace {
		capacity = minFreeSpace
	}
	return &Arena{buf: make([]byte, capacity)}
}

// acquireArena takes an arena from the shared pool when the requested size
// is the default one.
func acquireArena(capacity int) *Arena {
	if capacity != defaultArenaSize {
		return NewArena(capacity)
	}
	return &Arena{buf: getArenaBuffer(), pooled: true}
}

func (a *Arena) Len() int { return a.n }

func (a *Arena) Cap() int { return len(a.buf) }

// Generation identifies the current contents; it changes on Clear and Discard.
func (a *Arena) Generation() uint64 { return a.gen }

// Bytes returns the written region. The slice aliases the arena and is only
// meaningful until the next grow, clear or discard.
func (a *Arena) Bytes() []byte { return a.buf[:a.n] }

// FreeSpace returns the writable tail, growing first when fewer than
// minFreeSpace bytes remain.
func (a *Arena) FreeSpace() []byte {
	if a.buf == nil {
		panic("glacier: arena used after release")
	}
	for len(a.buf)-a.n < minFreeSpace {
		a.grow()
	}
	return a.buf[a.n:]
}

// Commit marks n bytes of the free space as written.
func (a *Arena) Commit(n int) {
	if n < 0 || n > len(a.buf)-a.n {
		panic(fmt.Sprintf("glacier: commit of %d bytes with %d free", n, len(a.buf)-a.n))
	}
	a.n += n
}

// Append copies p to the end of the written region.
func (a *Arena) Append(p []byte) {
	for len(p) > 0 {
		n := copy(a.FreeSpace(), p)
		a.n += n
		p = p[n:]
	}
}

// Clear forgets the written bytes but keeps the capacity.
func (a *Arena) Clear() {
	a.n = 0
	a.gen++
}

// Discard drops the first n written bytes and moves whatever follows them to
// the front of the arena.
func (a *Arena) Discard(n int) {
	if n >= a.n {
		a.Clear()
		return
	}
	a.n = copy(a.buf, a.buf[n:a.n])
	a.gen++
}

// Release hands the backing array back. The arena must not be used after.
func (a *Arena) Release() {
	if a.buf == nil {
		return
	}
	if a.pooled {
		putArenaBuffer(a.buf)
	}
	a.buf = nil
	a.n = 0
	a.gen++
}

func (a *Arena) grow() {
	next := make([]byte, 2*len(a.buf))
	copy(next, a.buf[:a.n])
	a.buf = next
}
