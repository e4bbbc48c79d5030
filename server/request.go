package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"unicode/utf8"
)

// requestLine holds the request line as offsets into the arena. The method
// starts at the line start; each end is exclusive of its separator and
// lineEnd includes the CRLF.
type requestLine struct {
	start      int
	methodEnd  int
	uriEnd     int
	versionEnd int
	lineEnd    int
}

// headerSpan is one header line: key is [keyStart, keyEnd), value is
// [valueStart, lineEnd-2).
type headerSpan struct {
	keyStart   int
	keyEnd     int
	valueStart int
	lineEnd    int
}

// bodySource pulls more bytes into the arena tail.
type bodySource interface {
	fill(op string) error
}

// Request is a parsed view over the bytes of one request held in a
// connection arena. It does not own any bytes: once the response has been
// written and the arena is reset for the next request, the view is stale and
// every accessor panics with ErrStaleRequest. Handlers must copy anything
// they need to keep.
type Request struct {
	arena *Arena
	gen   uint64

	line    requestLine
	pathEnd int
	headers []headerSpan

	bodyStart int
	bodyEnd   int
	bodyRead  bool
	bodyErr   error
	src       bodySource
	maxBody   int64

	remote net.Addr
	params map[string]string
	query  map[string]string
}

// parseRequestLine locates method, URI and version in the line
// buf[start:end], end being just past the CRLF.
func parseRequestLine(buf []byte, start, end int) (requestLine, error) {
	if end-start < 2 {
		return requestLine{}, newError(KindOption, "parse request line", io.ErrUnexpectedEOF)
	}
	line := buf[start : end-2]
	if !utf8.Valid(line) {
		return requestLine{}, newError(KindUTF8, "parse request line", nil)
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return requestLine{}, newError(KindBuildReq, "parse request line", errors.New("missing method separator"))
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 < 0 {
		return requestLine{}, newError(KindBuildReq, "parse request line", errors.New("missing version separator"))
	}
	sp2 += sp1 + 1
	if sp2 == sp1+1 {
		return requestLine{}, newError(KindBuildReq, "parse request line", errors.New("empty uri"))
	}
	if sp2+1 >= len(line) {
		return requestLine{}, newError(KindBuildReq, "parse request line", errors.New("empty version"))
	}
	return requestLine{
		start:      start,
		methodEnd:  start + sp1,
		uriEnd:     start + sp2,
		versionEnd: end - 2,
		lineEnd:    end,
	}, nil
}

// parseHeader splits the header line buf[start:end] at its first colon.
func parseHeader(buf []byte, start, end int) (headerSpan, error) {
	line := buf[start : end-2]
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return headerSpan{}, newError(KindBuildReq, "parse header", errors.New("missing colon"))
	}
	vs := colon + 1
	for vs < len(line) && (line[vs] == ' ' || line[vs] == '\t') {
		vs++
	}
	return headerSpan{
		keyStart:   start,
		keyEnd:     start + colon,
		valueStart: start + vs,
		lineEnd:    end,
	}, nil
}

// parse builds the view from a completed position table.
func (r *Request) parse(a *Arena, pos []int, bodyStart int) error {
	r.arena = a
	r.gen = a.Generation()
	r.headers = r.headers[:0]
	r.bodyStart, r.bodyEnd, r.bodyRead = bodyStart, bodyStart, false
	r.bodyErr = nil
	r.params = nil
	r.query = nil

	if len(pos) < 2 {
		return newError(KindOption, "parse request", errors.New("missing request line"))
	}
	buf := a.Bytes()
	line, err := parseRequestLine(buf, pos[0], pos[1])
	if err != nil {
		return err
	}
	r.line = line
	r.pathEnd = line.uriEnd
	if q := bytes.IndexByte(buf[line.methodEnd+1:line.uriEnd], '?'); q >= 0 {
		r.pathEnd = line.methodEnd + 1 + q
	}
	for i := 2; i < len(pos); i++ {
		h, err := parseHeader(buf, pos[i-1], pos[i])
		if err != nil {
			return err
		}
		r.headers = append(r.headers, h)
	}
	return nil
}

// Valid reports whether the view still refers to live arena contents.
func (r *Request) Valid() bool {
	return r.arena != nil && r.arena.buf != nil && r.arena.gen == r.gen
}

func (r *Request) view(from, to int) []byte {
	if !r.Valid() {
		panic(ErrStaleRequest)
	}
	return r.arena.buf[from:to:to]
}

func (r *Request) MethodBytes() []byte { return r.view(r.line.start, r.line.methodEnd) }

func (r *Request) Method() string { return string(r.MethodBytes()) }

// URIBytes is the full request target, query string included.
func (r *Request) URIBytes() []byte { return r.view(r.line.methodEnd+1, r.line.uriEnd) }

func (r *Request) URI() string { return string(r.URIBytes()) }

// PathBytes is the request target up to the first '?', used for routing.
func (r *Request) PathBytes() []byte { return r.view(r.line.methodEnd+1, r.pathEnd) }

func (r *Request) Path() string { return string(r.PathBytes()) }

// RawQuery is the part of the target after '?', without it.
func (r *Request) RawQuery() []byte {
	if r.pathEnd == r.line.uriEnd {
		return r.view(r.pathEnd, r.pathEnd)
	}
	return r.view(r.pathEnd+1, r.line.uriEnd)
}

func (r *Request) VersionBytes() []byte { return r.view(r.line.uriEnd+1, r.line.versionEnd) }

func (r *Request) Version() string { return string(r.VersionBytes()) }

// HeaderBytes returns the value of the first header whose key matches name,
// ignoring ASCII case. The lookup is a linear scan.
func (r *Request) HeaderBytes(name string) ([]byte, bool) {
	i := r.headerIndex(name)
	if i < 0 {
		return nil, false
	}
	h := r.headers[i]
	return r.view(h.valueStart, h.lineEnd-2), true
}

// Header is HeaderBytes as a string.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.HeaderBytes(name)
	return string(v), ok
}

func (r *Request) headerIndex(name string) int {
	for i, h := range r.headers {
		if equalFoldASCII(r.view(h.keyStart, h.keyEnd), name) {
			return i
		}
	}
	return -1
}

// NumHeaders returns the number of header lines.
func (r *Request) NumHeaders() int { return len(r.headers) }

// VisitHeaders calls fn for each header in order until it returns false.
func (r *Request) VisitHeaders(fn func(key, value []byte) bool) {
	for _, h := range r.headers {
		if !fn(r.view(h.keyStart, h.keyEnd), r.view(h.valueStart, h.lineEnd-2)) {
			return
		}
	}
}

// SetMethod overwrites the method in place. The new method must have the
// same length as the current one.
func (r *Request) SetMethod(method string) error {
	return r.overwrite(r.line.start, r.line.methodEnd, method)
}

// SetPath overwrites the routing path in place, leaving the query intact.
func (r *Request) SetPath(path string) error {
	return r.overwrite(r.line.methodEnd+1, r.pathEnd, path)
}

// SetVersion overwrites the protocol version in place.
func (r *Request) SetVersion(version string) error {
	return r.overwrite(r.line.uriEnd+1, r.line.versionEnd, version)
}

// SetHeader overwrites the value of an existing header in place.
func (r *Request) SetHeader(name, value string) error {
	i := r.headerIndex(name)
	if i < 0 {
		return newError(KindOption, "set header", errors.New(name))
	}
	h := r.headers[i]
	return r.overwrite(h.valueStart, h.lineEnd-2, value)
}

func (r *Request) overwrite(from, to int, value string) error {
	dst := r.view(from, to)
	if len(dst) != len(value) {
		return ErrLengthMismatch
	}
	copy(dst, value)
	return nil
}

// RemoteAddr is the peer address of the connection.
func (r *Request) RemoteAddr() net.Addr { return r.remote }

// Param returns a path parameter captured by the router.
func (r *Request) Param(name string) string { return r.params[name] }

// ContentLength returns the declared body length, 0 when absent.
func (r *Request) ContentLength() (int64, error) {
	v, ok := r.HeaderBytes("Content-Length")
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(v)), 10, 64)
	if err != nil || n < 0 {
		return 0, newError(KindBuildReq, "content length", errors.New("invalid Content-Length"))
	}
	return n, nil
}

// Body reads the request body on first use. Missing bytes are pulled from
// the connection into the same arena; nothing is read for requests without
// a Content-Length.
func (r *Request) Body() ([]byte, error) {
	if r.bodyRead {
		return r.view(r.bodyStart, r.bodyEnd), nil
	}
	if r.bodyErr != nil {
		return nil, r.bodyErr
	}
	if err := r.readBody(); err != nil {
		r.bodyErr = err
		return nil, err
	}
	return r.view(r.bodyStart, r.bodyEnd), nil
}

// readBody pulls the body announced by Content-Length into the arena. A
// failure is kept by Body and never retried.
func (r *Request) readBody() error {
	if te, ok := r.HeaderBytes("Transfer-Encoding"); ok && !equalFoldASCII(te, "identity") {
		return newError(KindBuildReq, "read body", errors.New("transfer-encoding not supported"))
	}
	n, err := r.ContentLength()
	if err != nil {
		return err
	}
	if r.maxBody > 0 && n > r.maxBody {
		return newError(KindBuildReq, "read body", ErrBodyTooLarge)
	}
	want := r.bodyStart + int(n)
	for r.arena.Len() < want {
		if r.src == nil {
			return newError(KindEOF, "read body", io.ErrUnexpectedEOF)
		}
		if err := r.src.fill("read body"); err != nil {
			return err
		}
	}
	r.bodyEnd = want
	r.bodyRead = true
	return nil
}

// consumed is the number of arena bytes that belong to this request.
func (r *Request) consumed() int {
	if r.bodyRead {
		return r.bodyEnd
	}
	return r.bodyStart
}

// WantsClose reports whether the client asked for the connection to end
// after this request.
func (r *Request) WantsClose() bool {
	v, ok := r.HeaderBytes("Connection")
	if ok && equalFoldASCII(bytes.TrimSpace(v), "close") {
		return true
	}
	if bytes.Equal(r.VersionBytes(), []byte("HTTP/1.0")) {
		return !ok || !equalFoldASCII(bytes.TrimSpace(v), "keep-alive")
	}
	return false
}

// Browser names the browser family from the User-Agent header.
func (r *Request) Browser() string {
	ua, _ := r.Header("User-Agent")
	return detectBrowser(ua)
}

func equalFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c, d := b[i], s[i]
		if c == d {
			continue
		}
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if 'A' <= d && d <= 'Z' {
			d += 'a' - 'A'
		}
		if c != d {
			return false
		}
	}
	return true
}
