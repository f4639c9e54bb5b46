package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/service"
)

func (s *Server) handleFires(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.svc.FirePoints(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.FireDetection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
		"fires": records,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats, err := s.svc.Statistics(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTemporal(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	temporal, err := s.svc.TemporalAnalysis(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, temporal)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var gridSize float64
	if v := r.URL.Query().Get("grid_size"); v != "" {
		gridSize, err = strconv.ParseFloat(v, 64)
		if err != nil || gridSize <= 0 {
			s.writeError(w, &domain.ValidationError{Field: "grid_size", Reason: "must be a positive number"})
			return
		}
	}

	hotspots, err := s.svc.Hotspots(gridSize, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(hotspots),
		"hotspots": hotspots,
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := requiredFloat(q.Get("lat"), "lat")
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := requiredFloat(q.Get("lon"), "lon")
	if err != nil {
		s.writeError(w, err)
		return
	}
	radius, err := requiredFloat(q.Get("radius"), "radius")
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.svc.Nearby(lat, lon, radius)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.FireDetection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
		"fires": records,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.DataStatus())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	days := 1
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: "days", Reason: "must be an integer"})
			return
		}
		days = n
	}

	report, err := s.svc.Refresh(r.Context(), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// parseFilter reads the shared filter query parameters: from, to
// (YYYY-MM-DD), min_confidence, and sources (comma-separated).
func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	var f domain.Filter

	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
		if err != nil {
			return domain.Filter{}, &domain.ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"}
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
		if err != nil {
			return domain.Filter{}, &domain.ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"}
		}
		f.To = t
	}
	if v := q.Get("min_confidence"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.Filter{}, &domain.ValidationError{Field: "min_confidence", Reason: "must be an integer"}
		}
		f.MinConfidence = n
	}
	if v := q.Get("sources"); v != "" {
		for _, part := range strings.Split(v, ",") {
			src, err := domain.ParseSource(strings.TrimSpace(part))
			if err != nil {
				return domain.Filter{}, err
			}
			f.Sources = append(f.Sources, src)
		}
	}

	return f, f.Validate()
}

func requiredFloat(v, field string) (float64, error) {
	if v == "" {
		return 0, &domain.ValidationError{Field: field, Reason: "required"}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("invalid number %q", v)}
	}
	return f, nil
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRefreshInProgress):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
