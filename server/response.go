package server

import (
	"bytes"
	"net/http"
	"strconv"
)

// Response describes what the pipeline writes back: a status line, a header
// block and an optional body. Body is written as is, without copying, so it
// may alias a cached asset.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// Close ends the connection after this response.
	Close bool

	headers []responseHeader
}

type responseHeader struct {
	key, value string
}

// NewResponse builds a response with a body and content type.
func NewResponse(status int, contentType string, body []byte) *Response {
	return &Response{Status: status, ContentType: contentType, Body: body}
}

// Text builds a text/plain response.
func Text(status int, body string) *Response {
	return NewResponse(status, "text/plain; charset=utf-8", []byte(body))
}

// HTML builds a text/html response.
func HTML(status int, body string) *Response {
	return NewResponse(status, "text/html; charset=utf-8", []byte(body))
}

// JSON builds an application/json response from an already encoded body.
func JSON(status int, body []byte) *Response {
	return NewResponse(status, "application/json", body)
}

// Serve400 returns a 400 response with the given message.
func Serve400(message string) *Response {
	return Text(http.StatusBadRequest, message)
}

// Serve500 returns a 500 response that closes the connection.
func Serve500() *Response {
	resp := Text(http.StatusInternalServerError, "Internal server error occurred")
	resp.Close = true
	return resp
}

// SetHeader adds a header line. Content-Type, Content-Length and Connection
// are managed by the writer and should not be set here.
func (r *Response) SetHeader(key, value string) *Response {
	r.headers = append(r.headers, responseHeader{key, value})
	return r
}

// writeHead appends the status line and header block to buf.
func (r *Response) writeHead(buf *bytes.Buffer, keepAlive bool) {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte(' ')
	buf.WriteString(statusText(status))
	if r.ContentType != "" {
		buf.WriteString("\r\nContent-Type: ")
		buf.WriteString(r.ContentType)
	}
	for _, h := range r.headers {
		buf.WriteString("\r\n")
		buf.WriteString(h.key)
		buf.WriteString(": ")
		buf.WriteString(h.value)
	}
	if keepAlive {
		buf.WriteString("\r\nConnection: keep-alive")
	} else {
		buf.WriteString("\r\nConnection: close")
	}
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.Itoa(len(r.Body)))
	buf.WriteString("\r\n\r\n")
}

// Bytes renders the whole response into one new slice.
func (r *Response) Bytes() []byte {
	buf := getResponseBuffer()
	defer putResponseBuffer(buf)

	r.writeHead(buf, !r.Close)
	buf.Write(r.Body)

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Status " + strconv.Itoa(code)
}

// Literal responses written when no handler is involved.
var (
	badRequestBytes = []byte("HTTP/1.1 400 Bad Request\r\n" +
		"Content-Type: text/plain\r\n" +
		"Connection: close\r\n" +
		"Content-Length: 11\r\n" +
		"\r\n" +
		"Bad Request")
	serviceUnavailableBytes = []byte("HTTP/1.1 503 Service Unavailable\r\n" +
		"Content-Type: text/plain\r\n" +
		"Connection: close\r\n" +
		"Content-Length: 19\r\n" +
		"\r\n" +
		"Service Unavailable")
)
