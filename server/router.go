package server

import (
	"net/http"
	"strings"
	"sync"
)

// Handler turns a parsed request into a response. The request view is only
// valid for the duration of the call.
type Handler interface {
	Dispatch(req *Request) *Response
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req *Request) *Response

func (f HandlerFunc) Dispatch(req *Request) *Response { return f(req) }

// RouteHandler is a function that handles an HTTP request
type RouteHandler func(req *Request) *Response

// Middleware wraps a RouteHandler, typically to filter requests before they
// reach it.
type Middleware func(next RouteHandler) RouteHandler

type route struct {
	pattern string
	handler RouteHandler
}

// Router manages HTTP routes and dispatches requests
type Router struct {
	mu         sync.RWMutex
	exact      map[string]map[string]RouteHandler
	patterns   map[string][]route
	middleware []Middleware
	assets     *AssetCache
	chain      RouteHandler
}

// NewRouter creates a new Router instance
func NewRouter() *Router {
	r := &Router{
		exact:    make(map[string]map[string]RouteHandler),
		patterns: make(map[string][]route),
	}
	r.chain = r.route
	return r
}

// Use appends middleware that wraps every dispatched request, static assets
// and not-found replies included.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)

	chain := RouteHandler(r.route)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		chain = r.middleware[i](chain)
	}
	r.chain = chain
}

// Static serves registered assets for GET and HEAD before any route.
func (r *Router) Static(cache *AssetCache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = cache
}

// Register adds a route handler for a method and path. Path segments
// starting with ':' capture a parameter; per-route middleware runs inside
// the router-wide middleware.
func (r *Router) Register(method, path string, handler RouteHandler, mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}

	if strings.Contains(path, "/:") {
		r.patterns[method] = append(r.patterns[method], route{pattern: path, handler: handler})
		return
	}
	if r.exact[method] == nil {
		r.exact[method] = make(map[string]RouteHandler)
	}
	r.exact[method][path] = handler
}

// Dispatch runs the router-wide middleware around route.
func (r *Router) Dispatch(req *Request) *Response {
	r.mu.RLock()
	chain := r.chain
	r.mu.RUnlock()
	return chain(req)
}

// route resolves a request: static assets first, then exact routes, then
// parameter patterns in registration order. HEAD falls back to GET routes.
func (r *Router) route(req *Request) *Response {
	method := req.Method()
	path := req.Path()

	r.mu.RLock()
	assets := r.assets
	handler, params, found := r.lookup(method, path)
	if !found && method == "HEAD" {
		handler, params, found = r.lookup("GET", path)
	}
	allowed := !found && r.pathKnown(path)
	r.mu.RUnlock()

	if assets != nil && (method == "GET" || method == "HEAD") {
		if resp, ok := assets.Response(path); ok {
			return resp
		}
	}
	if !found {
		if allowed {
			return Text(http.StatusMethodNotAllowed, "Method Not Allowed")
		}
		return assets.NotFound()
	}
	req.params = params
	return handler(req)
}

func (r *Router) lookup(method, path string) (RouteHandler, map[string]string, bool) {
	if h, ok := r.exact[method][path]; ok {
		return h, nil, true
	}
	for _, rt := range r.patterns[method] {
		if params, ok := matchRoute(path, rt.pattern); ok {
			return rt.handler, params, true
		}
	}
	return nil, nil, false
}

// pathKnown reports whether any method has a route for path.
func (r *Router) pathKnown(path string) bool {
	for method := range r.exact {
		if _, ok := r.exact[method][path]; ok {
			return true
		}
	}
	for _, routes := range r.patterns {
		for _, rt := range routes {
			if _, ok := matchRoute(path, rt.pattern); ok {
				return true
			}
		}
	}
	return false
}

func matchRoute(requestPath string, routePattern string) (map[string]string, bool) {
	requestParts := strings.Split(strings.Trim(requestPath, "/"), "/")
	patternParts := strings.Split(strings.Trim(routePattern, "/"), "/")

	// Must have same number of segments
	if len(requestParts) != len(patternParts) {
		return nil, false
	}

	params := make(map[string]string)
	for i := 0; i < len(requestParts); i++ {
		if strings.HasPrefix(patternParts[i], ":") {
			params[patternParts[i][1:]] = safeURLDecode(requestParts[i])
		} else if requestParts[i] != patternParts[i] {
			return nil, false
		}
	}
	return params, true
}
