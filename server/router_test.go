package server

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func dispatch(t *testing.T, h Handler, method, target string) (*Response, string) {
	t.Helper()
	req, _, err := parseBytes(t, method+" "+target+" HTTP/1.1\r\nHost: test\r\n\r\n")
	if err != nil {
		t.Fatalf("Parsing %s %s: %v", method, target, err)
	}
	resp := h.Dispatch(req)
	return resp, string(resp.Body)
}

func TestRouter(t *testing.T) {
	router := NewRouter()

	router.Register("GET", "/test", func(req *Request) *Response {
		return Text(http.StatusOK, "test response")
	})

	resp, body := dispatch(t, router, "GET", "/test")
	if resp.Status != 200 {
		t.Errorf("Expected status 200, got %d", resp.Status)
	}
	if !strings.Contains(body, "test response") {
		t.Errorf("Response doesn't contain expected body")
	}
}

func TestRouterNotFound(t *testing.T) {
	router := NewRouter()

	resp, body := dispatch(t, router, "GET", "/nonexistent")
	if resp.Status != 404 {
		t.Errorf("Expected status 404, got %d", resp.Status)
	}
	if body != "Route Not Found" {
		t.Errorf("Unexpected 404 body %q", body)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter()
	router.Register("POST", "/submit", func(req *Request) *Response {
		return Text(http.StatusOK, "ok")
	})

	resp, _ := dispatch(t, router, "GET", "/submit")
	if resp.Status != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.Status)
	}
}

func TestRouterHeadFallsBackToGet(t *testing.T) {
	router := NewRouter()
	router.Register("GET", "/page", func(req *Request) *Response {
		return Text(http.StatusOK, "page")
	})

	tests := []struct {
		method string
		status int
	}{
		{"HEAD", http.StatusOK},
		{"GET", http.StatusOK},
		{"POST", http.StatusMethodNotAllowed},
	}
	for _, test := range tests {
		resp, _ := dispatch(t, router, test.method, "/page")
		if resp.Status != test.status {
			t.Errorf("%s /page: expected %d, got %d", test.method, test.status, resp.Status)
		}
	}
}

func TestRouterIgnoresQueryString(t *testing.T) {
	router := NewRouter()
	router.Register("GET", "/search", func(req *Request) *Response {
		return Text(http.StatusOK, req.Query()["q"])
	})

	resp, body := dispatch(t, router, "GET", "/search?q=glacier%20fast&page=2")
	if resp.Status != 200 || body != "glacier fast" {
		t.Errorf("Expected 200 'glacier fast', got %d %q", resp.Status, body)
	}
}

func TestRouterPathParams(t *testing.T) {
	router := NewRouter()
	router.Register("GET", "/api/v1/users/:id/posts/:post", func(req *Request) *Response {
		return Text(http.StatusOK, req.Param("id")+"/"+req.Param("post"))
	})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/api/v1/users/42/posts/7", 200, "42/7"},
		{"/api/v1/users/a%20b/posts/x", 200, "a b/x"},
		{"/api/v1/users/42/posts", 404, "Route Not Found"},
		{"/api/v2/users/42/posts/7", 404, "Route Not Found"},
	}
	for _, test := range tests {
		resp, body := dispatch(t, router, "GET", test.path)
		if resp.Status != test.status || body != test.body {
			t.Errorf("%s: expected %d %q, got %d %q", test.path, test.status, test.body, resp.Status, body)
		}
	}
}

func TestMultipleExactRoutes(t *testing.T) {
	router := NewRouter()

	for _, name := range []string{"users", "products", "orders"} {
		body := name + " list"
		router.Register("GET", "/api/"+name, func(req *Request) *Response {
			return Text(http.StatusOK, body)
		})
	}

	tests := []struct {
		path     string
		expected string
	}{
		{"/api/users", "users list"},
		{"/api/products", "products list"},
		{"/api/orders", "orders list"},
	}

	for _, test := range tests {
		resp, body := dispatch(t, router, "GET", test.path)
		if resp.Status != 200 {
			t.Errorf("Expected status 200 for %s, got %d", test.path, resp.Status)
		}
		if body != test.expected {
			t.Errorf("Expected '%s' in response for %s, got %q", test.expected, test.path, body)
		}
	}
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next RouteHandler) RouteHandler {
			return func(req *Request) *Response {
				order = append(order, name)
				return next(req)
			}
		}
	}

	router := NewRouter()
	router.Use(tag("global"))
	router.Register("GET", "/", func(req *Request) *Response {
		order = append(order, "handler")
		return Text(http.StatusOK, "ok")
	}, tag("route"))

	dispatch(t, router, "GET", "/")
	if strings.Join(order, ",") != "global,route,handler" {
		t.Errorf("Unexpected middleware order %v", order)
	}
}

func TestRouterMiddlewareShortCircuit(t *testing.T) {
	deny := func(next RouteHandler) RouteHandler {
		return func(req *Request) *Response {
			if _, ok := req.Header("Authorization"); !ok {
				return Text(http.StatusUnauthorized, "no")
			}
			return next(req)
		}
	}
	router := NewRouter()
	called := false
	router.Register("GET", "/private", func(req *Request) *Response {
		called = true
		return Text(http.StatusOK, "secret")
	}, deny)

	resp, _ := dispatch(t, router, "GET", "/private")
	if resp.Status != http.StatusUnauthorized || called {
		t.Errorf("Middleware should stop the request, got %d (handler called %v)", resp.Status, called)
	}
}

func TestPostFormBody(t *testing.T) {
	router := NewRouter()
	router.Register("POST", "/api/users", func(req *Request) *Response {
		form, err := req.Form()
		if err != nil {
			return Serve400(err.Error())
		}
		name, email := form["name"], form["email"]
		if name == "" || email == "" {
			return Serve400("name and email required")
		}
		return Text(http.StatusCreated, "User created: "+name+" ("+email+")")
	})

	tests := []struct {
		contentType string
		body        string
		status      int
	}{
		{"application/x-www-form-urlencoded", "name=John+Doe&email=john%40example.com", 201},
		{"application/json", `{"name": "John Doe", "email": "john@example.com", "age": 30}`, 201},
		{"application/json", `{"name": "John Doe"}`, 400},
		{"application/json", `not json`, 400},
	}
	for _, test := range tests {
		raw := "POST /api/users HTTP/1.1\r\nContent-Type: " + test.contentType +
			"\r\nContent-Length: " + strconv.Itoa(len(test.body)) + "\r\n\r\n" + test.body
		req, _, err := parseBytes(t, raw)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		resp := router.Dispatch(req)
		if resp.Status != test.status {
			t.Errorf("For %s %q expected %d, got %d (%s)", test.contentType, test.body, test.status, resp.Status, resp.Body)
		}
		if test.status == 201 && !strings.Contains(string(resp.Body), "John Doe") {
			t.Errorf("Response should contain user name, got %q", resp.Body)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	body := `{"name":"John","age":30,"active":true}`
	req, _, err := parseBytes(t, "POST / HTTP/1.1\r\nContent-Length: "+strconv.Itoa(len(body))+"\r\n\r\n"+body)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var v struct {
		Name   string `json:"name"`
		Age    int    `json:"age"`
		Active bool   `json:"active"`
	}
	if err := req.DecodeJSON(&v); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if v.Name != "John" || v.Age != 30 || !v.Active {
		t.Errorf("Unexpected decode result %+v", v)
	}
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		input    string
		expected map[string]string
	}{
		{"key1=value1&key2=value2", map[string]string{"key1": "value1", "key2": "value2"}},
		{"name=John%20Doe&age=30", map[string]string{"name": "John Doe", "age": "30"}},
		{"flag&x=1&&y=", map[string]string{"x": "1", "y": ""}},
		{"", map[string]string{}},
	}

	for _, test := range tests {
		result := parseKeyValuePairsFromBytes([]byte(test.input))
		if len(result) != len(test.expected) {
			t.Errorf("Expected %d pairs, got %d for %q", len(test.expected), len(result), test.input)
			continue
		}
		for key, expectedValue := range test.expected {
			if actualValue, exists := result[key]; !exists || actualValue != expectedValue {
				t.Errorf("Expected %s=%s, got %s=%s", key, expectedValue, key, actualValue)
			}
		}
	}
}

func TestBrowserDetection(t *testing.T) {
	tests := []struct {
		userAgent string
		expected  string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36", "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0", "Firefox"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15", "Safari"},
		{"curl/7.68.0", "Unknown Browser"},
	}

	for _, test := range tests {
		req, _, err := parseBytes(t, "GET / HTTP/1.1\r\nUser-Agent: "+test.userAgent+"\r\n\r\n")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := req.Browser(); got != test.expected {
			t.Errorf("For UA %s: expected %s, got %s", test.userAgent, test.expected, got)
		}
	}
}

func TestResponseBytes(t *testing.T) {
	resp := JSON(http.StatusOK, []byte(`{"key":"value"}`)).SetHeader("X-Trace", "abc")
	responseStr := string(resp.Bytes())

	expectedParts := []string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: application/json\r\n",
		"X-Trace: abc\r\n",
		"Connection: keep-alive\r\n",
		"Content-Length: 15\r\n\r\n",
		`{"key":"value"}`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(responseStr, part) {
			t.Errorf("Response missing expected part: %q", part)
		}
	}

	if !strings.HasPrefix(string(Text(799, "").Bytes()), "HTTP/1.1 799 Status 799\r\n") {
		t.Error("Unknown status codes should still render a reason phrase")
	}
}
