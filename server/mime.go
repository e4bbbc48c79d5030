package server

import (
	"mime"
	"path/filepath"
	"strings"
)

// assetTypes overrides whatever the host's mime tables say, so served
// content types do not depend on the machine.
var assetTypes = map[string]string{
	// Text formats
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".md":   "text/markdown",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",

	// Video and audio
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",

	// Fonts
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",

	// Documents and archives
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
	".zip":  "application/zip",
	".gz":   "application/gzip",
}

func init() {
	for ext, typ := range assetTypes {
		mime.AddExtensionType(ext, typ)
	}
}

// getContentType determines MIME type from file extension. Text types get
// an explicit utf-8 charset.
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	contentType, ok := assetTypes[ext]
	if !ok {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	if strings.HasPrefix(contentType, "text/") && !strings.Contains(contentType, "charset") {
		contentType += "; charset=utf-8"
	}
	return contentType
}
