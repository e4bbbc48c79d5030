package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codetesla51/glacier/server"
)

func main() {
	configPath := flag.String("config", "glacier.toml", "path to the TOML config file")
	addrFlag := flag.String("addr", "", "listen address, overrides the config file")
	flag.Parse()

	server.SetColorOutput(os.Stderr)

	fc, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	router := server.NewRouter()
	if fc.Limits.MinIntervalMS > 0 {
		limiter := server.NewRateLimiter(time.Duration(fc.Limits.MinIntervalMS)*time.Millisecond, fc.Limits.RateTolerance)
		router.Use(limiter.Middleware())
	}
	if fc.Resources.Assets != "" {
		cache := server.NewAssetCache()
		n, err := cache.RegisterDir(fc.Resources.Assets)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Loaded %d static files from %s", n, fc.Resources.Assets)
		router.Static(cache)
	}
	registerRoutes(router)

	addr := fc.addr()
	if *addrFlag != "" {
		addr = *addrFlag
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("error listening to server: %v", err)
	}
	if fc.TLS.Cert != "" {
		cert, err := tls.LoadX509KeyPair(fc.TLS.Cert, fc.TLS.Key)
		if err != nil {
			log.Fatalf("tls: %v", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"http/1.1"},
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Server listening at %s", ln.Addr())
	srv := server.New(fc.serverConfig(), router)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal(err)
	}
	log.Print("Server stopped")
}

func registerRoutes(r *server.Router) {
	r.Register("GET", "/hello", func(req *server.Request) *server.Response {
		return server.Text(http.StatusOK, "Hello "+req.Browser()+" user!")
	})
	r.Register("GET", "/time", func(req *server.Request) *server.Response {
		return server.Text(http.StatusOK, time.Now().Format("15:04:05"))
	})
	r.Register("GET", "/users/:id", func(req *server.Request) *server.Response {
		return server.Text(http.StatusOK, "User "+req.Param("id"))
	})
	r.Register("POST", "/echo", func(req *server.Request) *server.Response {
		body, err := req.Body()
		if err != nil {
			return server.Serve400(err.Error())
		}
		ct, ok := req.Header("Content-Type")
		if !ok {
			ct = "application/octet-stream"
		}
		return server.NewResponse(http.StatusOK, ct, body)
	})
	r.Register("POST", "/form", func(req *server.Request) *server.Response {
		form, err := req.Form()
		if err != nil {
			return server.Serve400(err.Error())
		}
		name := form["name"]
		if name == "" {
			return server.Serve400("name required")
		}
		return server.Text(http.StatusCreated, "Created "+name)
	})
}
