package server

import (
	"log"
	"time"
)

type Config struct {
	// ReadTimeout bounds every single read call, not the whole request.
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderSize   int
	MaxBodySize     int64
	EnableKeepAlive bool
	EnableLogging   bool

	ArenaSize   int // initial per-connection buffer
	AcceptBatch int // connections handed over per accept wake
	MaxConns    int // 0 means unlimited

	Logger *log.Logger
}

func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxHeaderSize:   8192,
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		EnableKeepAlive: true,
		EnableLogging:   false,
		ArenaSize:       defaultArenaSize,
		AcceptBatch:     64,
		MaxConns:        0,
	}
}

// withDefaults fills zero fields so a partially built Config is usable.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	cfg := *c
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = d.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}
	if cfg.MaxHeaderSize <= 0 {
		cfg.MaxHeaderSize = d.MaxHeaderSize
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = d.MaxBodySize
	}
	if cfg.ArenaSize <= 0 {
		cfg.ArenaSize = d.ArenaSize
	}
	if cfg.AcceptBatch <= 0 {
		cfg.AcceptBatch = d.AcceptBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &cfg
}
