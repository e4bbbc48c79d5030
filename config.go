package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/codetesla51/glacier/server"
)

// fileConfig is the layout of glacier.toml:
//
//	[server]
//	host = "0.0.0.0"
//	port = 3000
//
//	[resources]
//	assets = "pages"
type fileConfig struct {
	Server struct {
		Host             string `toml:"host"`
		Port             int    `toml:"port"`
		ReadTimeoutSecs  int    `toml:"read_timeout_secs"`
		WriteTimeoutSecs int    `toml:"write_timeout_secs"`
		KeepAlive        *bool  `toml:"keep_alive"`
		Logging          bool   `toml:"logging"`
		MaxConns         int    `toml:"max_conns"`
		AcceptBatch      int    `toml:"accept_batch"`
	} `toml:"server"`

	Resources struct {
		Assets string `toml:"assets"`
	} `toml:"resources"`

	TLS struct {
		Cert string `toml:"cert"`
		Key  string `toml:"key"`
	} `toml:"tls"`

	Limits struct {
		MaxHeaderSize int   `toml:"max_header_size"`
		MaxBodySize   int64 `toml:"max_body_size"`
		MinIntervalMS int   `toml:"min_interval_ms"`
		RateTolerance int   `toml:"rate_tolerance"`
	} `toml:"limits"`
}

func defaultFileConfig() *fileConfig {
	fc := &fileConfig{}
	fc.Server.Host = "0.0.0.0"
	fc.Server.Port = 3000
	return fc
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*fileConfig, error) {
	fc := defaultFileConfig()
	md, err := toml.DecodeFile(path, fc)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Printf("config %s: unknown key %q", path, key.String())
	}
	return fc, nil
}

func (fc *fileConfig) addr() string {
	return net.JoinHostPort(fc.Server.Host, strconv.Itoa(fc.Server.Port))
}

func (fc *fileConfig) serverConfig() *server.Config {
	cfg := server.DefaultConfig()
	if fc.Server.ReadTimeoutSecs > 0 {
		cfg.ReadTimeout = time.Duration(fc.Server.ReadTimeoutSecs) * time.Second
	}
	if fc.Server.WriteTimeoutSecs > 0 {
		cfg.WriteTimeout = time.Duration(fc.Server.WriteTimeoutSecs) * time.Second
	}
	if fc.Server.KeepAlive != nil {
		cfg.EnableKeepAlive = *fc.Server.KeepAlive
	}
	cfg.EnableLogging = fc.Server.Logging
	cfg.MaxConns = fc.Server.MaxConns
	if fc.Server.AcceptBatch > 0 {
		cfg.AcceptBatch = fc.Server.AcceptBatch
	}
	if fc.Limits.MaxHeaderSize > 0 {
		cfg.MaxHeaderSize = fc.Limits.MaxHeaderSize
	}
	if fc.Limits.MaxBodySize > 0 {
		cfg.MaxBodySize = fc.Limits.MaxBodySize
	}
	return cfg
}
