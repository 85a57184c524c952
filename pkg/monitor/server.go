// Package monitor serves the HTTP view of a running server: Prometheus
// metrics, a health check, the device table, the connected clients and a
// websocket stream of protocol events.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/player-project/playerd/pkg/client"
	"github.com/player-project/playerd/pkg/device"
	"github.com/player-project/playerd/pkg/metrics"
)

// Devices lists the device table.
type Devices interface {
	List() []device.Entry
}

// Sessions lists the connected clients.
type Sessions interface {
	Sessions() []*client.Session
}

// Config holds the monitor settings.
type Config struct {
	// Address is the listen address, e.g. ":9665".
	Address string

	// Version is reported by /health.
	Version string

	// Registry backs /metrics. Nil serves 404 there.
	Registry *metrics.Registry

	Devices  Devices
	Sessions Sessions

	Logger *slog.Logger
}

// DeviceView is one device in the /devices response.
type DeviceView struct {
	Addr          string `json:"addr"`
	Port          uint16 `json:"port"`
	Interface     string `json:"interface"`
	Index         uint16 `json:"index"`
	Driver        string `json:"driver"`
	Access        string `json:"access"`
	Subscriptions int    `json:"subscriptions"`
}

// ClientView is one session in the /clients response.
type ClientView struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	Connected time.Time `json:"connected"`
	Mode      string    `json:"mode"`
	Frequency uint16    `json:"frequency"`
	Devices   []string  `json:"devices"`
}

// Server is the monitor HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	server  *http.Server
	hub     *Hub
	started time.Time

	listener net.Listener
}

// NewServer creates a monitor. Call Start to listen.
func NewServer(cfg Config) *Server {
	s := &Server{
		config:  cfg,
		mux:     http.NewServeMux(),
		hub:     NewHub(cfg.Logger),
		started: time.Now(),
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	if s.config.Registry != nil {
		s.mux.Handle("/metrics", s.config.Registry.Handler())
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/devices", s.handleDevices)
	s.mux.HandleFunc("/clients", s.handleClients)
	s.mux.Handle("/events", s.hub)
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the event hub. Add it to the protocol logger to stream events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("monitor listen: %w", err)
	}
	s.listener = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.config.Logger != nil {
				s.config.Logger.Warn("monitor stopped", "error", err)
			}
		}
	}()
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close disconnects event clients and shuts the server down.
func (s *Server) Close() error {
	s.hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}
	resp := map[string]any{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}
	if s.config.Devices != nil {
		resp["devices"] = len(s.config.Devices.List())
	}
	if s.config.Sessions != nil {
		resp["clients"] = len(s.config.Sessions.Sessions())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := []DeviceView{}
	if s.config.Devices != nil {
		for _, e := range s.config.Devices.List() {
			v := DeviceView{
				Addr:      e.Addr.String(),
				Port:      e.Addr.Port,
				Interface: e.Addr.Interface.String(),
				Index:     e.Addr.Index,
				Driver:    e.DriverName,
				Access:    e.Access.String(),
			}
			if e.Driver != nil {
				v.Subscriptions = e.Driver.Subscriptions()
			}
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := []ClientView{}
	if s.config.Sessions != nil {
		for _, sess := range s.config.Sessions.Sessions() {
			v := ClientView{
				ID:        sess.ID(),
				Remote:    sess.RemoteAddr(),
				Connected: sess.Created(),
				Mode:      sess.Mode().String(),
				Frequency: sess.Frequency(),
				Devices:   []string{},
			}
			for _, sub := range sess.Subscriptions() {
				v.Devices = append(v.Devices, sub.Addr.String()+" "+sub.Access.String())
			}
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
