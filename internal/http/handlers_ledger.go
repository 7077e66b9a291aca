package http

import (
	"net/http"
)

// handleGetLedger returns the merged month view: real transactions plus the
// surviving forecasts, the overview totals, and the month settings.
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	ledger, err := s.ledger.Ledger(r.Context(), year, month, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ledger)
}
