package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/evelib/evecrest"
	"github.com/briangreenhill/evelib/eveonline"
	"github.com/briangreenhill/evelib/internal/http/middleware"
	"github.com/briangreenhill/evelib/internal/jobs"
	"github.com/briangreenhill/evelib/request"
)

// Server is the HTTP gateway in front of the cached API clients.
//
// Each client comes in two flavours over the same store: the regular one
// serves valid cache entries, the fresh one never reads the cache but still
// records what it fetches.
type Server struct {
	Router     *chi.Mux
	EVE        *eveonline.Client
	EVEFresh   *eveonline.Client
	Crest      *evecrest.Client
	CrestFresh *evecrest.Client
	Jobs       jobs.Enqueuer
}

type ServerOptions struct {
	EVE        *eveonline.Client
	EVEFresh   *eveonline.Client
	Crest      *evecrest.Client
	CrestFresh *evecrest.Client
	Jobs       jobs.Enqueuer // optional; POST /refresh answers 503 without it
	Metrics    http.Handler  // optional; mounted on /metrics
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.BypassCache)

	s := &Server{
		Router:     r,
		EVE:        opts.EVE,
		EVEFresh:   opts.EVEFresh,
		Crest:      opts.Crest,
		CrestFresh: opts.CrestFresh,
		Jobs:       opts.Jobs,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/server/status", s.handleServerStatus)
	r.Get("/eve/alliances", s.handleAllianceList)
	r.Get("/eve/character-id", s.handleCharacterID)
	r.Get("/crest/alliances/{allianceID}", s.handleCrestAlliance)
	r.Post("/refresh", s.handleRefresh)

	return s
}

func (s *Server) eve(r *http.Request) *eveonline.Client {
	if middleware.WantsFresh(r.Context()) && s.EVEFresh != nil {
		return s.EVEFresh
	}
	return s.EVE
}

func (s *Server) crest(r *http.Request) *evecrest.Client {
	if middleware.WantsFresh(r.Context()) && s.CrestFresh != nil {
		return s.CrestFresh
	}
	return s.Crest
}

type serverStatusView struct {
	Open          bool      `json:"open"`
	OnlinePlayers int64     `json:"online_players"`
	CachedUntil   time.Time `json:"cached_until"`
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.eve(r).Server.Status(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	setCachedUntil(w, res.CachedUntil())
	writeJSON(w, r, http.StatusOK, serverStatusView{
		Open:          bool(res.Result.ServerOpen),
		OnlinePlayers: res.Result.OnlinePlayers,
		CachedUntil:   res.CachedUntil(),
	})
}

type allianceView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Ticker      string    `json:"ticker"`
	MemberCount int64     `json:"member_count"`
	StartDate   time.Time `json:"start_date"`
}

func (s *Server) handleAllianceList(w http.ResponseWriter, r *http.Request) {
	res, err := s.eve(r).Eve.AllianceList(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	out := make([]allianceView, 0, len(res.Result.Alliances))
	for _, a := range res.Result.Alliances {
		out = append(out, allianceView{
			ID:          a.AllianceID,
			Name:        a.Name,
			Ticker:      a.ShortName,
			MemberCount: a.MemberCount,
			StartDate:   a.StartDate.Time,
		})
	}
	setCachedUntil(w, res.CachedUntil())
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCharacterID(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, n := range strings.Split(r.URL.Query().Get("names"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		http.Error(w, "names required", http.StatusBadRequest)
		return
	}

	res, err := s.eve(r).Eve.CharacterID(r.Context(), names...)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	out := make(map[string]int64, len(res.Result.Characters))
	for _, c := range res.Result.Characters {
		out[c.Name] = c.CharacterID
	}
	setCachedUntil(w, res.CachedUntil())
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCrestAlliance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "allianceID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad alliance id", http.StatusBadRequest)
		return
	}
	if s.Crest == nil {
		http.Error(w, "crest disabled", http.StatusServiceUnavailable)
		return
	}

	a, err := s.crest(r).Alliance(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		http.Error(w, "refresh queue not configured", http.StatusServiceUnavailable)
		return
	}

	var p jobs.RefreshPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if p.Area == "" {
		p.Area = jobs.AreaEVEOnline
	}

	info, err := jobs.EnqueueRefresh(r.Context(), s.Jobs, p)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("[asynq] enqueue failed")
		http.Error(w, "could not enqueue refresh: "+err.Error(), http.StatusBadRequest)
		return
	}
	hlog.FromRequest(r).Info().Str("id", info.ID).Str("queue", info.Queue).Msg("[asynq] enqueued task")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"id": info.ID, "queue": info.Queue})
}

func setCachedUntil(w http.ResponseWriter, t time.Time) {
	if !t.IsZero() {
		w.Header().Set("X-Cached-Until", t.UTC().Format(http.TimeFormat))
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

// writeUpstreamError maps pipeline failures to gateway responses.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Warn().Err(err).Msg("upstream request failed")

	var apiErr *eveonline.APIError
	var terr *request.TransportError
	var derr *request.DeserializationError
	switch {
	case errors.As(err, &apiErr):
		writeJSON(w, r, http.StatusBadGateway, map[string]any{"error": strings.TrimSpace(apiErr.Message), "code": apiErr.Code})
	case errors.As(err, &terr):
		status := http.StatusBadGateway
		if terr.StatusCode() == http.StatusNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, r, status, map[string]any{"error": "upstream fetch failed", "upstream_status": terr.StatusCode()})
	case errors.As(err, &derr):
		writeJSON(w, r, http.StatusBadGateway, map[string]any{"error": "upstream returned an unreadable payload"})
	default:
		writeJSON(w, r, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}
