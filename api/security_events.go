package api

import (
	"net/http"
	"time"

	"bidhouse/core"
	"bidhouse/storage"
)

// listSecurityEventsHandler queries the archive with optional severity,
// reason, and time range filters. Returns 503 when no archive is wired.
//
//	@Summary		List security events
//	@Tags			security
//	@Produce		json
//	@Param			severity	query		string	false	"Filter by severity (low, medium, high, critical)"
//	@Param			reason		query		string	false	"Filter by event reason"
//	@Param			since		query		string	false	"Events at or after this time (RFC3339)"
//	@Param			until		query		string	false	"Events before this time (RFC3339)"
//	@Param			limit		query		int		false	"Items per page (default 100)"
//	@Param			offset		query		int		false	"Items to skip"
//	@Success		200			{object}	map[string]interface{}	"events, count"
//	@Failure		400			{string}	string	"Invalid filter"
//	@Failure		503			{string}	string	"Event archive is not configured"
//	@Security		BearerAuth
//	@Router			/api/v1/security/events [get]
func (a *API) listSecurityEventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := storage.SecurityEventFilters{
		Reason: q.Get("reason"),
		Limit:  queryInt(q, "limit", 100),
		Offset: queryInt(q, "offset", 0),
	}
	if raw := q.Get("severity"); raw != "" {
		severity := core.Severity(raw)
		if !severity.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid severity filter", nil, a.logger)
			return
		}
		filters.Severity = severity
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339", err, a.logger)
			return
		}
		filters.Since = since
	}
	if raw := q.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339", err, a.logger)
			return
		}
		filters.Until = until
	}

	events, err := a.archive.QueryEvents(r.Context(), filters)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	}, http.StatusOK)
}

// securityEventSummaryHandler returns event counts by severity over a
// trailing window, 24h by default.
//
//	@Summary		Summarize security events
//	@Tags			security
//	@Produce		json
//	@Param			window	query		string	false	"Trailing window as a Go duration (default 24h)"
//	@Success		200		{object}	map[string]interface{}	"since, window, counts"
//	@Failure		400		{string}	string	"window must be a positive duration"
//	@Failure		503		{string}	string	"Event archive is not configured"
//	@Security		BearerAuth
//	@Router			/api/v1/security/events/summary [get]
func (a *API) securityEventSummaryHandler(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration", err, a.logger)
			return
		}
		window = parsed
	}

	since := time.Now().Add(-window)
	counts, err := a.archive.CountEventsBySeverity(r.Context(), since)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"since":  since.UTC().Format(time.RFC3339),
		"window": window.String(),
		"counts": counts,
	}, http.StatusOK)
}
