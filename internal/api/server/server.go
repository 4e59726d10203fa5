package server

import (
	"net/http"
	"time"

	"github.com/aliskhannn/plantphoto/internal/config"
)

// New creates an HTTP server for the router using the configured timeouts.
func New(cfg config.Server, router http.Handler) *http.Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
