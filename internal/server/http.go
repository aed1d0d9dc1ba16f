package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/service"
)

type Server struct {
	ratings *service.RatingService
	sync    *service.SyncService
	metrics *service.MetricsService
	db      *sql.DB
	logger  zerolog.Logger
}

func NewServer(ratings *service.RatingService, syncSvc *service.SyncService, metricsSvc *service.MetricsService, db *sql.DB, logger zerolog.Logger) *Server {
	return &Server{
		ratings: ratings,
		sync:    syncSvc,
		metrics: metricsSvc,
		db:      db,
		logger:  logger,
	}
}

// Routes wires the versioned API surface. /v1/metrics/calculate must be
// registered before /v1/metrics/{sport} so the literal segment wins.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ratings/query", s.handleQueryRatings).Methods(http.MethodPost)
	v1.HandleFunc("/ratings/{sport}", s.handleListRatings).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/calculate", s.handleCalculateMetrics).Methods(http.MethodPost)
	v1.HandleFunc("/metrics/{sport}/calculate", s.handleCalculateSport).Methods(http.MethodPost)
	v1.HandleFunc("/metrics/{sport}", s.handleListMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/sync", s.handleSyncAll).Methods(http.MethodPost)
	v1.HandleFunc("/sync/{sport}", s.handleSyncSport).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

type queryRatingsRequest struct {
	Sport string   `json:"sport"`
	Teams []string `json:"teams"`
}

func (req *queryRatingsRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Sport) == "":
		return &domain.MissingFieldError{Field: "sport"}
	case len(req.Teams) == 0:
		return &domain.MissingFieldError{Field: "teams"}
	}
	for _, team := range req.Teams {
		if strings.TrimSpace(team) == "" {
			return &domain.MissingFieldError{Field: "teams"}
		}
	}
	return nil
}

type queryRatingsResponse struct {
	Sport   string             `json:"sport"`
	Ratings map[string]float64 `json:"ratings"`
}

type ratingResponse struct {
	Sport               string    `json:"sport"`
	Team                string    `json:"team"`
	Rating              float64   `json:"rating"`
	GamesPlayed         int       `json:"games_played"`
	LastUpdated         time.Time `json:"last_updated"`
	LastProcessedGameID string    `json:"last_processed_game_id,omitempty"`
}

type ratingsPayload struct {
	Sport   string           `json:"sport"`
	Count   int              `json:"count"`
	Ratings []ratingResponse `json:"ratings"`
}

type adjustedMetricResponse struct {
	Team       string    `json:"team"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Factor     float64   `json:"factor"`
	SampleSize int       `json:"sample_size"`
	ComputedAt time.Time `json:"computed_at"`
}

type adjustedMetricsPayload struct {
	Sport   string                   `json:"sport"`
	Count   int                      `json:"count"`
	Metrics []adjustedMetricResponse `json:"metrics"`
}

type metricsBatchResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type sportCalculatedResponse struct {
	Sport string `json:"sport"`
	Count int    `json:"count"`
}

type syncResultResponse struct {
	Sport        string `json:"sport"`
	GamesApplied int    `json:"games_applied"`
	Duplicates   int    `json:"duplicates"`
	Invalid      int    `json:"invalid"`
	StatsStored  int    `json:"stats_stored"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleQueryRatings(w http.ResponseWriter, r *http.Request) {
	var req queryRatingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(w, err)
		return
	}

	records, err := s.ratings.QueryRatings(r.Context(), req.Sport, req.Teams)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := queryRatingsResponse{Sport: req.Sport, Ratings: make(map[string]float64, len(records))}
	for _, rec := range records {
		resp.Sport = rec.Sport.String()
		resp.Ratings[rec.Team] = rec.Rating
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	sport := mux.Vars(r)["sport"]
	records, err := s.ratings.RatingsBySport(r.Context(), sport)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingsFrom(sport, records))
}

func (s *Server) handleCalculateMetrics(w http.ResponseWriter, r *http.Request) {
	result := s.metrics.CalculateAll(r.Context())
	writeJSON(w, http.StatusOK, metricsBatchResponse{Counts: result.Counts, Total: result.Total})
}

func (s *Server) handleCalculateSport(w http.ResponseWriter, r *http.Request) {
	sport := mux.Vars(r)["sport"]
	count, err := s.metrics.CalculateSport(r.Context(), sport)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sportCalculatedResponse{Sport: sport, Count: count})
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	sport := mux.Vars(r)["sport"]
	stored, err := s.metrics.AdjustedBySport(r.Context(), sport)
	if err != nil {
		s.respondError(w, err)
		return
	}

	payload := adjustedMetricsPayload{
		Sport:   sport,
		Count:   len(stored),
		Metrics: make([]adjustedMetricResponse, 0, len(stored)),
	}
	for _, m := range stored {
		payload.Sport = m.Sport.String()
		payload.Metrics = append(payload.Metrics, adjustedMetricResponse{
			Team:       m.Team,
			Metric:     m.Metric,
			Value:      m.Value,
			Factor:     m.Factor,
			SampleSize: m.SampleSize,
			ComputedAt: m.ComputedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	results := s.sync.SyncAll(r.Context())

	payload := make([]syncResultResponse, 0, len(results))
	for _, result := range results {
		payload = append(payload, syncResultFrom(result))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSyncSport(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.SyncSport(r.Context(), mux.Vars(r)["sport"])
	if err != nil {
		var unsupported *domain.UnsupportedSportError
		if errors.As(err, &unsupported) {
			s.respondError(w, err)
			return
		}
		writeError(w, http.StatusBadGateway, "sync_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, syncResultFrom(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var (
		unsupported  *domain.UnsupportedSportError
		missing      *domain.MissingFieldError
		invalid      *domain.InvalidGameError
		insufficient *domain.InsufficientDataError
	)
	switch {
	case errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, "unsupported_sport", err)
	case errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, "missing_field", err)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_game", err)
	case errors.As(err, &insufficient):
		writeError(w, http.StatusNotFound, "insufficient_data", err)
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func ratingsFrom(sport string, records []domain.RatingRecord) ratingsPayload {
	payload := ratingsPayload{
		Sport:   sport,
		Count:   len(records),
		Ratings: make([]ratingResponse, 0, len(records)),
	}
	for _, rec := range records {
		payload.Sport = rec.Sport.String()
		payload.Ratings = append(payload.Ratings, ratingResponse{
			Sport:               rec.Sport.String(),
			Team:                rec.Team,
			Rating:              rec.Rating,
			GamesPlayed:         rec.GamesPlayed,
			LastUpdated:         rec.LastUpdated,
			LastProcessedGameID: rec.LastProcessedGameID,
		})
	}
	return payload
}

func syncResultFrom(result service.SyncResult) syncResultResponse {
	resp := syncResultResponse{
		Sport:        result.Sport.String(),
		GamesApplied: result.GamesApplied,
		Duplicates:   result.Duplicates,
		Invalid:      result.Invalid,
		StatsStored:  result.StatsStored,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
