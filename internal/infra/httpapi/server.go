package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"home-setup/internal/application"
	"home-setup/internal/domain"
	"home-setup/internal/infra/floorplan"
)

// multipartSlack covers form boundaries and headers on top of the image itself.
const multipartSlack = 64 * 1024

// IdentityKeeper is the signed-in identity as the display layer manages it.
type IdentityKeeper interface {
	application.IdentityStore
	Save(ctx context.Context, identity domain.Identity) error
	Clear(ctx context.Context) error
}

// Server exposes one wizard session to a browser display layer.
type Server struct {
	addr           string
	wizard         *application.Session
	identities     IdentityKeeper
	profiles       application.ProfileSource
	maxUploadBytes int64
	logger         *slog.Logger

	router  *mux.Router
	limiter *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(
	addr string,
	wizard *application.Session,
	identities IdentityKeeper,
	profiles application.ProfileSource,
	maxUploadBytes int64,
	ratePerMinute int,
	logger *slog.Logger,
) *Server {
	s := &Server{
		addr:           addr,
		wizard:         wizard,
		identities:     identities,
		profiles:       profiles,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		router:         mux.NewRouter(),
		limiter:        NewRateLimiter(ratePerMinute, time.Minute),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/route", s.handleRoute).Methods(http.MethodGet)
	// Polled by the display layer; not rate limited.
	s.router.HandleFunc("/api/wizard", s.handleSnapshot).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware)

	api.HandleFunc("/auth/session", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	w := api.PathPrefix("/wizard").Subrouter()
	w.HandleFunc("/payment", s.handlePayment).Methods(http.MethodPost)
	w.HandleFunc("/rooms/{key}/increment", s.handleRoom(true)).Methods(http.MethodPost)
	w.HandleFunc("/rooms/{key}/decrement", s.handleRoom(false)).Methods(http.MethodPost)
	w.HandleFunc("/floorplan", s.handleFloorplan).Methods(http.MethodPost)
	w.HandleFunc("/devices", s.handleAddDevice).Methods(http.MethodPost)
	w.HandleFunc("/devices/{id}", s.handleUpdateDevice).Methods(http.MethodPatch)
	w.HandleFunc("/devices/{id}", s.handleRemoveDevice).Methods(http.MethodDelete)
	w.HandleFunc("/next", s.handleNext).Methods(http.MethodPost)
	w.HandleFunc("/back", s.handleBack).Methods(http.MethodPost)
	w.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	w.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
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

	// No WriteTimeout: submit waits for the backend as long as it takes.
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		s.logger.Info("wizard API listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "step": s.wizard.Step().String()})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role == "" {
		identity, err := s.identities.Current(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		role = identity.EffectiveRole()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"destination": domain.RouteForRole(role),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var identity domain.Identity
	if err := decodeBody(r, &identity); err != nil {
		writeError(w, err)
		return
	}
	if identity.UserID == 0 {
		writeError(w, &domain.ValidationError{Field: "id", Message: "user id required"})
		return
	}
	identity.Role = identity.EffectiveRole()

	if err := s.identities.Save(r.Context(), identity); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("signed in", "user_id", identity.UserID, "role", identity.Role)
	s.prefill(r.Context(), identity)

	writeJSON(w, http.StatusOK, map[string]any{
		"role":        identity.Role,
		"destination": domain.RouteForRole(identity.Role),
	})
}

// prefill seeds the wizard from the stored profile of a fresh sign-in.
// Failures are logged and the wizard keeps its state.
func (s *Server) prefill(ctx context.Context, identity domain.Identity) {
	if s.profiles == nil {
		return
	}
	profile, err := s.profiles.FetchProfile(ctx, identity)
	if err != nil {
		s.logger.Warn("profile not loaded, starting empty", "user_id", identity.UserID, "error", err)
		return
	}
	s.wizard.Prefill(*profile)
	s.logger.Debug("wizard prefilled from profile", "user_id", identity.UserID)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identities.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.wizard.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentType string `json:"payment_type"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.wizard.SelectPayment(req.PaymentType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handleRoom(increment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := domain.RoomKey(mux.Vars(r)["key"])
		var err error
		if increment {
			err = s.wizard.IncrementRoom(key)
		} else {
			err = s.wizard.DecrementRoom(key)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.wizard.Snapshot())
	}
}

func (s *Server) handleFloorplan(w http.ResponseWriter, r *http.Request) {
	// The body limit stays within the in-memory budget so the parsed file
	// outlives the request for the background read.
	limit := s.maxUploadBytes + multipartSlack
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrFileTooLarge, s.maxUploadBytes))
			return
		}
		writeError(w, &domain.ValidationError{Field: "floorplan", Message: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("floorplan")
	if err != nil {
		writeError(w, &domain.ValidationError{Field: "floorplan", Message: "no file provided"})
		return
	}
	file.Close()

	upload := floorplan.NewUpload(header.Filename, header.Size, header.Header.Get("Content-Type"), openPart(header))

	read, err := s.wizard.UploadFloorplan(r.Context(), upload)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("wait") == "" {
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "reading", "file": header.Filename})
		return
	}

	if _, err := read.Wait(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func openPart(header *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return header.Open()
	}
}

func (s *Server) handleAddDevice(w http.ResponseWriter, _ *http.Request) {
	id := s.wizard.AddDevice()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.wizard.UpdateDevice(mux.Vars(r)["id"], domain.DeviceField(req.Field), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	s.wizard.RemoveDevice(mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	if err := s.wizard.Next(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handleBack(w http.ResponseWriter, _ *http.Request) {
	s.wizard.Back()
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.wizard.Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "submitted",
		"receipt": receipt,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.wizard.Reset()
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrReadFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSubmissionRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		msg = rejected.Error()
	}
	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		msg = invalid.Error()
	}
	writeMessage(w, statusFor(err), msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
