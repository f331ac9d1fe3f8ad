// Package api exposes the panel's control operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"venue-panel/internal/application"
	"venue-panel/internal/domain"
)

// StatusSource serves the last polled device statuses.
type StatusSource interface {
	Statuses() []domain.DeviceStatus
	SyncedAt() time.Time
}

type ChannelReader interface {
	GetChannel(ctx context.Context, address string) (int, error)
}

type Deps struct {
	Zones        []domain.Zone
	Orchestrator *application.Orchestrator
	// Venue is nil when no venue audio toggle is configured.
	Venue     *application.VenueAudio
	Snapshots *application.VolumeSnapshots
	Status    StatusSource
	Channels  ChannelReader
	// Bus serializes every device-touching request.
	Bus sync.Locker
}

type Server struct {
	addr        string
	deps        Deps
	zoneIndex   map[string]domain.Zone
	router      *mux.Router
	rateLimiter *RateLimiter
	logger      *slog.Logger

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(addr string, deps Deps, ratePerMinute int, logger *slog.Logger) *Server {
	if deps.Bus == nil {
		deps.Bus = &sync.Mutex{}
	}

	s := &Server{
		addr:        addr,
		deps:        deps,
		zoneIndex:   make(map[string]domain.Zone, len(deps.Zones)),
		router:      mux.NewRouter(),
		rateLimiter: NewRateLimiter(ratePerMinute, time.Minute),
		logger:      logger,
	}
	for _, z := range deps.Zones {
		s.zoneIndex[z.Name] = z
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/zones", s.handleListZones).Methods(http.MethodGet)
	api.HandleFunc("/zones/{zone}/channel", s.handleGetChannel).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/venue/audio/snapshot", s.handleSnapshot).Methods(http.MethodGet)

	// Mutating endpoints drive hardware and are rate limited.
	limit := s.rateLimiter.Middleware
	api.Handle("/zones/channel", limit(http.HandlerFunc(s.handleSwitchAll))).Methods(http.MethodPost)
	api.Handle("/zones/{zone}/channel", limit(http.HandlerFunc(s.handleSwitchZone))).Methods(http.MethodPost)
	api.Handle("/venue/audio", limit(http.HandlerFunc(s.handleVenueAudio))).Methods(http.MethodPost)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// A venue-wide anti-popping switch takes several seconds per zone.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP control API starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Status: "error", Message: message})
}

func respondSuccess(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, Response{Status: "success", Message: message, Data: data})
}

// respondReport maps a bulk outcome onto the three states the panel shows.
func respondReport(w http.ResponseWriter, report *domain.BulkReport) {
	switch {
	case report.FailureCount == 0:
		respondJSON(w, http.StatusOK, Response{Status: "success", Message: report.Message, Data: report})
	case report.SuccessCount == 0:
		respondJSON(w, http.StatusBadGateway, Response{Status: "error", Message: report.Message, Data: report})
	default:
		respondJSON(w, http.StatusOK, Response{Status: "partial", Message: report.Message, Data: report})
	}
}

type switchRequest struct {
	Channel *int              `json:"channel"`
	Mode    domain.SwitchMode `json:"mode"`
}

func decodeSwitch(w http.ResponseWriter, r *http.Request) (switchRequest, error) {
	var req switchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	if req.Channel == nil || *req.Channel < 0 {
		return req, errors.New("channel must be a non-negative integer")
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return req, fmt.Errorf("mode must be %q or %q", domain.SwitchModePlain, domain.SwitchModeAntiPop)
	}
	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	if !running {
		status = "not_ready"
	}

	data := map[string]any{"running": running, "zones": len(s.deps.Zones)}
	if s.deps.Status != nil {
		if synced := s.deps.Status.SyncedAt(); !synced.IsZero() {
			data["devices_synced_at"] = synced
		}
	}
	respondJSON(w, http.StatusOK, Response{Status: status, Data: data})
}

func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	type zoneView struct {
		Name    string            `json:"name"`
		Address string            `json:"address"`
		Mode    domain.SwitchMode `json:"mode"`
	}
	zones := make([]zoneView, 0, len(s.deps.Zones))
	for _, z := range s.deps.Zones {
		zones = append(zones, zoneView{Name: z.Name, Address: z.Address, Mode: z.Mode})
	}
	respondSuccess(w, "", zones)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.zoneIndex[mux.Vars(r)["zone"]]
	if !ok {
		respondError(w, http.StatusNotFound, domain.ErrZoneNotFound.Error())
		return
	}

	s.deps.Bus.Lock()
	channel, err := s.deps.Channels.GetChannel(r.Context(), zone.Address)
	s.deps.Bus.Unlock()
	if err != nil {
		s.logger.Warn("reading zone channel", "zone", zone.Name, "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondSuccess(w, "", map[string]any{"zone": zone.Name, "channel": channel})
}

func (s *Server) handleSwitchZone(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.zoneIndex[mux.Vars(r)["zone"]]
	if !ok {
		respondError(w, http.StatusNotFound, domain.ErrZoneNotFound.Error())
		return
	}

	req, err := decodeSwitch(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.deps.Bus.Lock()
	defer s.deps.Bus.Unlock()

	// A started switch runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	report := s.deps.Orchestrator.SwitchAll(ctx, []domain.Zone{zone}, *req.Channel, req.Mode)
	respondReport(w, report)
}

func (s *Server) handleSwitchAll(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSwitch(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.deps.Bus.Lock()
	defer s.deps.Bus.Unlock()

	ctx := context.WithoutCancel(r.Context())
	report := s.deps.Orchestrator.SwitchAll(ctx, s.deps.Zones, *req.Channel, req.Mode)
	respondReport(w, report)
}

func (s *Server) handleVenueAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Venue == nil {
		respondError(w, http.StatusNotFound, "venue audio toggle not configured")
		return
	}

	var req struct {
		Source application.VenueSource `json:"source"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source != application.VenueSourceCapture && req.Source != application.VenueSourceRestore {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("source must be %q or %q",
			application.VenueSourceCapture, application.VenueSourceRestore))
		return
	}

	s.deps.Bus.Lock()
	defer s.deps.Bus.Unlock()

	report, err := s.deps.Venue.SwitchTo(context.WithoutCancel(r.Context()), req.Source)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondReport(w, report)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		respondError(w, http.StatusNotFound, "no snapshot store configured")
		return
	}

	snapshot, err := s.deps.Snapshots.Current(r.Context())
	switch {
	case errors.Is(err, domain.ErrMalformedSnapshot):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	case snapshot == nil:
		respondError(w, http.StatusNotFound, "no volume snapshot captured")
	default:
		respondSuccess(w, "", snapshot)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Status == nil {
		respondSuccess(w, "", []domain.DeviceStatus{})
		return
	}
	respondSuccess(w, "", s.deps.Status.Statuses())
}
