package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mauv0809/rating-ladder/internal/rating"
)

const healthCheckTimeout = 2 * time.Second

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loggerFromContext(r).Debug("Received health check request")
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.Pool.HealthCheck(ctx); err != nil {
			loggerFromContext(r).Error("Health check failed", "error", err)
			http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) PoolStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, s.Pool.Stat())
	}
}

// RankingsHandler serves the ladder of a group ordered by rating.
func (s *Server) RankingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, limit, ok := groupAndLimit(w, r)
		if !ok {
			return
		}
		records, err := s.Service.Rankings(r.Context(), groupID, limit)
		if err != nil {
			writeServiceError(w, r, "Failed to get rankings", err)
			return
		}
		if records == nil {
			records = []rating.RatingRecord{}
		}
		writeJSON(w, r, records)
	}
}

func (s *Server) ListMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, limit, ok := groupAndLimit(w, r)
		if !ok {
			return
		}
		matches, err := s.Service.Matches(r.Context(), groupID, limit)
		if err != nil {
			writeServiceError(w, r, "Failed to get matches", err)
			return
		}
		if matches == nil {
			matches = []rating.MatchRecord{}
		}
		writeJSON(w, r, matches)
	}
}

// ParticipantHandler looks a participant up on GET and enrolls one on POST.
// A POST with dry_run=true only reports whether the participant would be created.
func (s *Server) ParticipantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := r.URL.Query().Get("group")
		participantID := r.URL.Query().Get("id")
		if groupID == "" || participantID == "" {
			http.Error(w, "group and id are required", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			rec, err := s.Service.Participant(r.Context(), groupID, participantID)
			if err != nil {
				writeServiceError(w, r, "Failed to get participant", err)
				return
			}
			writeJSON(w, r, rec)
		case http.MethodPost:
			if isDryRunFromContext(r) {
				_, err := s.Service.Participant(r.Context(), groupID, participantID)
				if err != nil && !errors.Is(err, rating.ErrNotFound) {
					writeServiceError(w, r, "Failed to get participant", err)
					return
				}
				loggerFromContext(r).Info("Dry run: skipping enrollment", "group", groupID, "participant", participantID)
				writeJSON(w, r, map[string]any{"dry_run": true, "created": errors.Is(err, rating.ErrNotFound)})
				return
			}
			rec, created, err := s.Service.Enroll(r.Context(), groupID, participantID)
			if err != nil {
				writeServiceError(w, r, "Failed to enroll participant", err)
				return
			}
			if created {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				if err := json.NewEncoder(w).Encode(rec); err != nil {
					loggerFromContext(r).Error("Failed to encode participant to JSON", "error", err)
				}
				return
			}
			writeJSON(w, r, rec)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func groupAndLimit(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	groupID := r.URL.Query().Get("group")
	if groupID == "" {
		http.Error(w, "group is required", http.StatusBadRequest)
		return "", 0, false
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return "", 0, false
		}
		limit = n
	}
	return groupID, limit, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rating.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rating.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, rating.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		loggerFromContext(r).Error(msg, "error", err)
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFromContext(r).Error("Failed to encode response to JSON", "error", err)
	}
}
