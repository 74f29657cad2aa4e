package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket" // Alias to avoid name conflict

	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/auth"
	"github.com/vedantsgith/Helios-Watch/internal/backend"
	"github.com/vedantsgith/Helios-Watch/internal/simulator"
	"github.com/vedantsgith/Helios-Watch/internal/store"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
	"github.com/vedantsgith/Helios-Watch/internal/websocket"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	maxBodyBytes = 1 << 20
	maxDuration  = 3600
	// OriginHTTP tags frames posted to the data endpoint.
	OriginHTTP = "http"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins for simplicity
}

// Submitter feeds the ingest loop; the ingest dispatcher satisfies it.
// Dispatch waits until the event has been applied.
type Submitter interface {
	Submit(ctx context.Context, raw []byte, origin string) error
	Dispatch(ctx context.Context, ev telemetry.Event, origin string) error
}

// Simulator plays synthetic events in-process.
type Simulator interface {
	Start(ctx context.Context, kind string, seconds int) (int, error)
	Stop()
}

// Backend is the REST collaborator for login and remote simulations.
type Backend interface {
	RequestOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) (backend.VerifyResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (telemetry.User, error)
	Health(ctx context.Context) error
	TriggerSimulation(ctx context.Context, req backend.SimulationRequest) (backend.SimulationResult, error)
}

// Deps wires an APIHandler. Simulator may be nil, in which case simulation
// requests go to Backend.
type Deps struct {
	Store           *store.Store
	Ingest          Submitter
	Hub             *websocket.Hub
	Backend         Backend
	Auth            *auth.AuthManager
	Simulator       Simulator
	Metrics         http.Handler
	Log             *slog.Logger
	DefaultDuration int
	StateLimit      int // samples per metric in state views; 0 means all
}

type APIHandler struct {
	store      *store.Store
	ingest     Submitter
	hub        *websocket.Hub
	backend    Backend
	auth       *auth.AuthManager
	sim        Simulator
	metrics    http.Handler
	log        *slog.Logger
	tmpl       *template.Template
	duration   int
	stateLimit int
}

func NewAPIHandler(d Deps) (*APIHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if d.DefaultDuration <= 0 {
		d.DefaultDuration = 60
	}
	if d.Metrics == nil {
		d.Metrics = http.NotFoundHandler()
	}
	return &APIHandler{
		store:      d.Store,
		ingest:     d.Ingest,
		hub:        d.Hub,
		backend:    d.Backend,
		auth:       d.Auth,
		sim:        d.Simulator,
		metrics:    d.Metrics,
		log:        d.Log.With(slog.String("component", "api")),
		tmpl:       tmpl,
		duration:   d.DefaultDuration,
		stateLimit: d.StateLimit,
	}, nil
}

// State renders the current store state the way dashboards receive it.
func (h *APIHandler) State(snap store.Snapshot) StateView {
	return NewStateView(snap, h.stateLimit)
}

// HandleDataIngest receives raw feed frames from producers that cannot hold
// a socket open.
func (h *APIHandler) HandleDataIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("read request body", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	defer r.Body.Close()

	if err := h.ingest.Submit(r.Context(), body, OriginHTTP); err != nil {
		switch {
		case errors.Is(err, telemetry.ErrUnknownType):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, telemetry.ErrMalformed):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// HandleWebSocket upgrades connections and registers clients with the hub
func (h *APIHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", slog.Any("error", err))
		return
	}

	client := websocket.NewClient(h.hub, conn, h.log)
	// The client gets the state as of registration, then every broadcast.
	snap := h.store.Snapshot()
	initial, err := websocket.Encode(websocket.TypeState, h.State(snap))
	if err != nil {
		h.log.Error("encode initial state", slog.Any("error", err))
	}
	h.hub.RegisterClient(client, snap.Version, initial)

	// Start read/write pumps in separate goroutines
	go client.WritePump()
	go client.ReadPump() // Must run ReadPump to handle control messages (close, pong)
}

// ServeWebUI serves the gateway status page
func (h *APIHandler) ServeWebUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "index.html", h.State(h.store.Snapshot())); err != nil {
		h.log.Error("execute template", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleHealth reports the gateway as up even when the backend is not;
// backend reachability is a separate field.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	backendStatus := "ok"
	if err := h.backend.Health(r.Context()); err != nil {
		h.log.Warn("backend health", slog.Any("error", err))
		backendStatus = "unreachable"
	}
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"feed":      snap.Status,
		"backend":   backendStatus,
		"version":   snap.Version,
		"overlay":   snap.Overlay.Active,
		"retention": h.store.Retention(),
	})
}

func (h *APIHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.State(h.store.Snapshot()))
}

func (h *APIHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"forecast": anomaly.Forecast(snap.Current),
		"tiers":    anomaly.ClassifyAll(snap.Current),
		"overlay":  snap.Overlay.Active,
	})
}

// HandleHistory serves one metric's series. view selects the real series
// or what dashboards currently display.
func (h *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	m := telemetry.Metric(chi.URLParam(r, "metric"))
	if !m.Valid() {
		writeError(w, http.StatusNotFound, "unknown metric "+string(m))
		return
	}
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "display"
	}
	if view != "display" && view != "real" {
		writeError(w, http.StatusBadRequest, "view must be real or display")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":   m,
		"view":     view,
		"overlaid": snap.Overlay.Affects(m),
		"points":   snap.Series(m, view == "display").Recent(limit),
	})
}

type simulateRequest struct {
	Type      string `json:"type"`
	Duration  int    `json:"duration"`
	EventType string `json:"event_type"`
}

// HandleSimulate marks the overlay active and starts a synthetic event,
// either in-process or on the backend.
func (h *APIHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	if req.Duration == 0 {
		req.Duration = h.duration
	}
	if req.Duration < 1 || req.Duration > maxDuration {
		writeError(w, http.StatusBadRequest, "duration must be between 1 and 3600 seconds")
		return
	}
	flare, storm := simulator.IsFlare(req.Type), simulator.IsStorm(req.Type)
	if !flare && !storm {
		writeError(w, http.StatusBadRequest, "type must be a flare class (C, M, X) or storm level (G1-G5)")
		return
	}
	if storm && h.sim == nil {
		writeError(w, http.StatusBadRequest, "storm simulations need local simulation mode")
		return
	}
	if req.EventType == "" {
		req.EventType = store.EventFlare
		if storm {
			req.EventType = store.EventGeomagnetic
		}
	}

	trigger := telemetry.SimulationTrigger{EventType: req.EventType, Level: req.Type}
	if err := h.ingest.Dispatch(r.Context(), trigger, OriginHTTP); err != nil {
		h.log.Error("trigger simulation", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "ingest unavailable")
		return
	}

	var (
		points int
		mode   string
		err    error
	)
	if h.sim != nil {
		mode = "local"
		points, err = h.sim.Start(context.WithoutCancel(r.Context()), req.Type, req.Duration)
	} else {
		mode = "backend"
		var res backend.SimulationResult
		res, err = h.backend.TriggerSimulation(r.Context(), backend.SimulationRequest{
			Type: req.Type, Duration: req.Duration, EventType: req.EventType,
		})
		points = res.Points
	}
	if err != nil {
		if rerr := h.ingest.Dispatch(context.WithoutCancel(r.Context()), telemetry.SimulationRevert{}, OriginHTTP); rerr != nil {
			h.log.Error("revert failed simulation", slog.Any("error", rerr))
		}
		h.log.Error("start simulation", slog.String("mode", mode), slog.String("type", req.Type), slog.Any("error", err))
		writeBackendError(w, err)
		return
	}

	h.log.Info("simulation started", slog.String("mode", mode), slog.String("type", req.Type),
		slog.String("event_type", req.EventType), slog.Int("points", points))
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "started", "points": points, "mode": mode})
}

// HandleRevert stops any in-process run and restores every display series
// to its real series. The revert is queued behind whatever the run had
// already queued, so none of its samples can reappear afterwards.
func (h *APIHandler) HandleRevert(w http.ResponseWriter, r *http.Request) {
	if h.sim != nil {
		h.sim.Stop()
	}
	if err := h.ingest.Dispatch(r.Context(), telemetry.SimulationRevert{}, OriginHTTP); err != nil {
		h.log.Error("revert simulation", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "ingest unavailable")
		return
	}
	snap := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reverted",
		"overlay": snap.Overlay.Active,
		"version": snap.Version,
	})
}

func (h *APIHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	msg, err := h.backend.RequestOTP(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.log.Warn("request otp", slog.Any("error", err))
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

func (h *APIHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"otp_code"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || !validEmail(req.Email) || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "email and otp_code are required")
		return
	}
	res, err := h.backend.VerifyOTP(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Code)
	if err != nil {
		h.log.Warn("verify otp", slog.Any("error", err))
		writeBackendError(w, err)
		return
	}

	user := res.User()
	token, err := h.auth.GenerateJWT(user)
	if err != nil {
		h.log.Error("issue session", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cannot create session")
		return
	}
	h.auth.SetSessionCookie(w, token)
	h.store.SetSession(&user)
	h.log.Info("operator logged in", slog.Int64("user_id", user.ID))

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": res.Message, "user": user})
}

// HandleMe confirms the local session with the backend. A session the
// backend no longer knows is ended here too.
func (h *APIHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	user, err := h.backend.Me(r.Context())
	if errors.Is(err, backend.ErrNoSession) {
		h.auth.ClearSessionCookie(w)
		h.store.SetSession(nil)
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	if err != nil {
		h.log.Warn("session check", slog.Any("error", err))
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *APIHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Logout(r.Context()); err != nil {
		// the local session ends regardless
		h.log.Warn("backend logout", slog.Any("error", err))
	}
	h.auth.ClearSessionCookie(w)
	h.store.SetSession(nil)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBackendError passes backend 4xx replies through and reports
// everything else as a bad gateway.
func writeBackendError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		writeError(w, apiErr.Status, apiErr.Detail)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
