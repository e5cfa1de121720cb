package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// Username and Password guard configuration writes. Empty Username
	// leaves writes open.
	Username string
	Password string

	// CertPath and KeyPath switch the listener to HTTPS when both are set.
	CertPath string
	KeyPath  string

	// Advertise publishes the service over mDNS as Instance.
	Advertise bool
	Instance  string

	ShutdownTimeout time.Duration
}

// Device is the reader the service fronts. *reader.Device satisfies it.
type Device interface {
	DeviceInfo(ctx context.Context) (*deviceconfig.DeviceInfo, error)
	RuntimeConfig(ctx context.Context) (*runtimeconfig.RuntimeConfiguration, error)
	WriteRuntimeConfig(ctx context.Context, rc *runtimeconfig.RuntimeConfiguration) error
	RuntimeRegisters(ctx context.Context) ([]deviceconfig.RuntimeRegisterItem, error)
	Export(ctx context.Context) (string, error)
}

// Server is the device configuration service
type Server struct {
	config      *Config
	device      Device
	broadcaster *notify.Broadcaster
	router      *gin.Engine
	httpServer  *http.Server
	listener    net.Listener
	adv         *discovery.Advertisement
	wg          sync.WaitGroup
	mu          sync.Mutex
	now         func() time.Time
}

// New creates a new Server instance
func New(config *Config, device Device) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:      config,
		device:      device,
		broadcaster: notify.NewBroadcaster(),
		now:         time.Now,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Notifications returns the broadcaster feeding the event stream.
func (s *Server) Notifications() *notify.Broadcaster {
	return s.broadcaster
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener, optionally advertises over mDNS, and serves
// until ctx is cancelled. Cancellation shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.config.CertPath != "" && s.config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			_ = listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Info("Starting modbusreader configuration service",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("auth", s.config.Username != ""),
		zap.Bool("tls", s.config.CertPath != ""),
	)

	if s.config.Advertise {
		s.advertise(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

func (s *Server) advertise(ctx context.Context) {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)

	var serial, product string
	infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if info, err := s.device.DeviceInfo(infoCtx); err == nil {
		serial, product = info.SerialNumber, info.ProductCode
	} else {
		logging.Warn("Advertising without device identity", zap.Error(err))
	}

	instance := s.config.Instance
	if instance == "" {
		instance = "modbusreader"
		if serial != "" {
			instance += "-" + serial
		}
	}

	adv, err := discovery.Advertise(instance, p, discovery.BuildTXT(serial, product, deviceconfig.APIPrefix))
	if err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	s.adv = adv
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.adv.Shutdown()

	// Closing the broadcaster ends every event stream.
	s.broadcaster.Close()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
		if err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = s.httpServer.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Event streams still open at shutdown deadline")
	}

	logging.Sync()
	return err
}

// EventStreams returns the number of connected event stream clients
func (s *Server) EventStreams() int {
	return s.broadcaster.Subscribers()
}
