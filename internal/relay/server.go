package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/discovery"
	"github.com/tuftsceeo/smartmotor/internal/logging"
)

// Config holds the relay server configuration
type Config struct {
	Host       string
	Port       int
	CertPath   string // TLS certificate; empty with KeyPath empty = plain TCP
	KeyPath    string
	LogLevel   string
	CaptureDir string // Directory for JSONL traffic captures (empty = disabled)
	Announce   bool   // Register the relay via mDNS for --discover agents
}

// Server is the development channel relay
type Server struct {
	config   *Config
	hub      *Hub
	capture  *CaptureWriter
	httpSrv  *http.Server
	stopMDNS func()
}

// New creates a relay server
func New(config *Config) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if (config.CertPath == "") != (config.KeyPath == "") {
		return nil, fmt.Errorf("both cert and key must be provided together, or neither")
	}

	capture, err := NewCaptureWriter(config.CaptureDir)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  config,
		hub:     NewHub(capture),
		capture: capture,
	}, nil
}

// Start runs the relay and blocks until a shutdown signal or a listener
// error
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	useTLS := s.config.CertPath != ""

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if useTLS {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			return err
		}
		s.httpSrv.TLSConfig = tlsConfig
	}

	logging.Info("Starting SmartMotor channel relay",
		zap.String("addr", addr),
		zap.Bool("tls", useTLS),
		zap.String("capture", s.capture.Path()),
		zap.String("log_level", s.config.LogLevel),
	)

	if s.config.Announce {
		stop, err := discovery.Announce(s.config.Port, "/api/channels", useTLS)
		if err != nil {
			// Discovery is a convenience; the relay still works by address
			logging.Warn("mDNS announcement failed", zap.Error(err))
		} else {
			s.stopMDNS = stop
			logging.Info("Relay announced via mDNS",
				zap.String("service", discovery.ServiceType),
			)
		}
	}

	// Serve in a goroutine so the signal wait below owns the foreground
	errChan := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = s.httpSrv.ListenAndServeTLS("", "")
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping relay...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return fmt.Errorf("relay listener failed: %w", err)
	}
}

// Shutdown stops the relay gracefully: the mDNS record is withdrawn, the
// listener closes, and the capture file is flushed
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopMDNS != nil {
		s.stopMDNS()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)

	if closeErr := s.capture.Close(); err == nil {
		err = closeErr
	}

	logging.Info("Relay stopped")
	logging.Sync()
	return err
}
