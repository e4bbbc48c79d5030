package server

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAssetCacheRegisterDir(t *testing.T) {
	dir := t.TempDir()
	index := []byte("<html><body>index</body></html>")
	writeFile(t, filepath.Join(dir, "index.html"), index)
	writeFile(t, filepath.Join(dir, "css", "site.css"), []byte("body{}"))
	writeFile(t, filepath.Join(dir, "docs", "index.html"), []byte("docs"))

	cache := NewAssetCache()
	n, err := cache.RegisterDir(dir)
	if err != nil {
		t.Fatalf("RegisterDir: %v", err)
	}
	if n != 3 || cache.Len() != 3 {
		t.Errorf("Expected 3 files, registered %d, cached %d", n, cache.Len())
	}

	tests := []struct {
		path        string
		contentType string
		body        string
	}{
		{"/", "text/html; charset=utf-8", string(index)},
		{"/index.html", "text/html; charset=utf-8", string(index)},
		{"/css/site.css", "text/css; charset=utf-8", "body{}"},
		{"/docs/", "text/html; charset=utf-8", "docs"},
	}
	for _, test := range tests {
		resp, ok := cache.Response(test.path)
		if !ok {
			t.Errorf("Expected %s to be cached", test.path)
			continue
		}
		if resp.Status != http.StatusOK || resp.ContentType != test.contentType || string(resp.Body) != test.body {
			t.Errorf("%s: got %d %s %q", test.path, resp.Status, resp.ContentType, resp.Body)
		}
	}

	if _, err := cache.Get("/missing.js"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found for missing asset, got %v", err)
	}
	if _, ok := cache.Response("/../index.html"); ok {
		t.Error("Traversal paths must not resolve")
	}
}

func TestAssetCacheMissingDir(t *testing.T) {
	cache := NewAssetCache()
	if _, err := cache.RegisterDir(filepath.Join(t.TempDir(), "nope")); KindOf(err) != KindIO {
		t.Errorf("Expected io error for missing dir, got %v", err)
	}
}

func TestAssetCacheNotFoundPage(t *testing.T) {
	cache := NewAssetCache()
	if resp := cache.NotFound(); resp.Status != 404 || string(resp.Body) != "Route Not Found" {
		t.Errorf("Expected literal 404, got %d %q", resp.Status, resp.Body)
	}

	page := []byte("<h1>gone</h1>")
	cache.Register("/404.html", page)
	resp := cache.NotFound()
	if resp.Status != 404 || !bytes.Equal(resp.Body, page) {
		t.Errorf("Expected cached 404 page, got %d %q", resp.Status, resp.Body)
	}
}

func TestAssetResponseAliasesCache(t *testing.T) {
	cache := NewAssetCache()
	body := []byte("shared")
	cache.Register("/a.txt", body)

	resp, _ := cache.Response("/a.txt")
	if &resp.Body[0] != &body[0] {
		t.Error("Asset responses should not copy the cached bytes")
	}
}

func TestGetContentType(t *testing.T) {
	tests := map[string]string{
		"a.html":  "text/html; charset=utf-8",
		"a.JSON":  "application/json",
		"a.png":   "image/png",
		"a.woff2": "font/woff2",
		"a":       "application/octet-stream",
	}
	for file, want := range tests {
		if got := getContentType(file); got != want {
			t.Errorf("%s: expected %s, got %s", file, want, got)
		}
	}
}
