package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func (s *Server) handleGetMonthSettings(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !monthKeyPattern.MatchString(key) {
		writeError(w, http.StatusBadRequest, "month key must be YYYY-MM")
		return
	}

	settings, err := s.ledger.MonthSettings(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	settings.Key = key
	writeJSON(w, http.StatusOK, settings)
}

type monthSettingsRequest struct {
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

func (s *Server) handlePutMonthSettings(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !monthKeyPattern.MatchString(key) {
		writeError(w, http.StatusBadRequest, "month key must be YYYY-MM")
		return
	}

	var req monthSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings := core.MonthSettings{Key: key, StartingBalance: req.StartingBalance}
	if err := s.ledger.UpdateMonthSettings(r.Context(), settings); err != nil {
		writeServiceError(w, r, err)
		return
	}

	stored, err := s.ledger.MonthSettings(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	stored.Key = key
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !monthKeyPattern.MatchString(key) {
		writeError(w, http.StatusBadRequest, "month key must be YYYY-MM")
		return
	}

	parts := strings.SplitN(key, "-", 2)
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])

	if err := s.ledger.CloseMonth(r.Context(), year, month); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
