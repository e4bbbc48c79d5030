package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

type asset struct {
	body        []byte
	contentType string
}

// AssetCache maps request paths to file contents loaded at startup. It is
// filled before serving and only read afterwards, so lookups never contend.
// Only registered paths can be served, which rules out path traversal.
type AssetCache struct {
	files *xsync.MapOf[string, asset]
}

func NewAssetCache() *AssetCache {
	return &AssetCache{files: xsync.NewMapOf[string, asset]()}
}

// RegisterDir reads every regular file under dir into memory, keyed by its
// slash-separated path relative to dir with a leading '/'. Large files
// should not be put here. It returns the number of files registered.
func (c *AssetCache) RegisterDir(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		c.Register("/"+filepath.ToSlash(rel), content)
		count++
		return nil
	})
	if err != nil {
		return count, newError(KindIO, "register dir", err)
	}
	return count, nil
}

// Register stores body under the request path p.
func (c *AssetCache) Register(p string, body []byte) {
	c.files.Store(path.Clean("/"+p), asset{body: body, contentType: getContentType(p)})
}

func (c *AssetCache) Len() int { return c.files.Size() }

// Get returns the bytes registered for a request path. "/" and paths ending
// in '/' resolve to their index.html.
func (c *AssetCache) Get(p string) ([]byte, error) {
	a, ok := c.lookup(p)
	if !ok {
		return nil, newError(KindOption, "asset", errors.New(p))
	}
	return a.body, nil
}

func (c *AssetCache) lookup(p string) (asset, bool) {
	if c == nil {
		return asset{}, false
	}
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	return c.files.Load(p)
}

// Response builds a 200 whose body aliases the cached bytes.
func (c *AssetCache) Response(p string) (*Response, bool) {
	a, ok := c.lookup(p)
	if !ok {
		return nil, false
	}
	return NewResponse(http.StatusOK, a.contentType, a.body), true
}

// NotFound serves the registered /404.html, or a plain text fallback.
func (c *AssetCache) NotFound() *Response {
	if a, ok := c.lookup("/404.html"); ok {
		return NewResponse(http.StatusNotFound, a.contentType, a.body)
	}
	return Text(http.StatusNotFound, "Route Not Found")
}
