package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"bidhouse/chain"
	"bidhouse/core"
	"bidhouse/util"
)

// writeError logs the full error and sends the client a sanitized message.
// Internal detail stays in the logs; responses carry only what the caller
// needs to correct the request.
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if err != nil {
		logger.Errorw("API error",
			"status", statusCode,
			"message", message,
			"error", util.SanitizeError(err))
	} else {
		logger.Warnw("API error", "status", statusCode, "message", message)
	}
	http.Error(w, util.SanitizeString(message), statusCode)
}

// respondJSON writes data as a JSON response. Encoding failures are logged;
// by then the status line is gone so there is nothing useful to send.
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response", "error", err)
	}
}

// malformedRequest carries the status and client-safe message for a body
// that failed to decode.
type malformedRequest struct {
	status int
	msg    string
}

func (mr *malformedRequest) Error() string { return mr.msg }

// decodeJSONBodyWithLimit decodes a JSON body into dst with a size cap and
// unknown fields rejected. Decode failures map to precise 400s so clients
// can fix the request; an oversized body maps to 413.
func decodeJSONBodyWithLimit(w http.ResponseWriter, r *http.Request, dst interface{}, limit int) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxError):
			return &malformedRequest{
				status: http.StatusBadRequest,
				msg:    fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset),
			}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &malformedRequest{
				status: http.StatusBadRequest,
				msg:    "Request body contains badly-formed JSON",
			}
		case errors.As(err, &unmarshalTypeError):
			return &malformedRequest{
				status: http.StatusBadRequest,
				msg:    fmt.Sprintf("Request body contains an invalid value for the %q field", unmarshalTypeError.Field),
			}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return &malformedRequest{
				status: http.StatusBadRequest,
				msg:    fmt.Sprintf("Request body contains unknown field %s", field),
			}
		case errors.Is(err, io.EOF):
			return &malformedRequest{
				status: http.StatusBadRequest,
				msg:    "Request body must not be empty",
			}
		case err.Error() == "http: request body too large":
			return &malformedRequest{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("Request body must not exceed %d bytes", limit),
			}
		default:
			return err
		}
	}

	if dec.More() {
		return &malformedRequest{
			status: http.StatusBadRequest,
			msg:    "Request body must only contain a single JSON object",
		}
	}
	return nil
}

// decodeJSON decodes the body into dst and writes the error response itself
// on failure. Returns false when the request was rejected.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, limit int) bool {
	if err := decodeJSONBodyWithLimit(w, r, dst, limit); err != nil {
		var mr *malformedRequest
		if errors.As(err, &mr) {
			writeError(w, mr.status, mr.msg, err, a.logger)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		}
		return false
	}
	return true
}

// healthHandler reports liveness plus the state of the chain clock, which is
// the component whose degradation changes bid semantics.
//
//	@Summary		Health check
//	@Description	Returns liveness plus the current chain clock reading and websocket client count
//	@Tags			operations
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/health [get]
func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	reading := a.clock.Now(r.Context())
	a.respondJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"chain": map[string]interface{}{
			"timestamp":    reading.Timestamp,
			"block_number": reading.BlockNumber,
			"is_accurate":  reading.Accurate,
		},
		"websocket_clients": a.hub.ClientCount(),
	}, http.StatusOK)
}

// chainTimeHandler returns the reading every bid decision would use right
// now.
//
//	@Summary		Get chain time
//	@Description	Returns the cached chain reading: timestamp, block number, and whether it came from the chain or the local fallback clock
//	@Tags			time
//	@Produce		json
//	@Success		200	{object}	chain.Reading
//	@Router			/api/v1/time [get]
func (a *API) chainTimeHandler(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, a.clock.Now(r.Context()), http.StatusOK)
}

// probeRequest is the body of POST /api/v1/time/probe.
type probeRequest struct {
	RPCURL string `json:"rpc_url"`
}

// probeTimeHandler fetches the latest block time from a caller-supplied RPC
// endpoint. The endpoint is arbitrary, which makes this a server-side
// request forgery primitive, so the route is admin-only, disabled by
// default, and every rejection is recorded.
//
//	@Summary		Probe an RPC endpoint
//	@Description	Fetches the latest block time from the given endpoint; admin-only and disabled unless chain.probe_enabled is set
//	@Tags			time
//	@Accept			json
//	@Produce		json
//	@Param			probe	body		probeRequest	true	"Endpoint to probe"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{string}	string	"rpc_url must be an absolute http or https URL"
//	@Failure		403		{string}	string	"Time probe is disabled"
//	@Security		BearerAuth
//	@Router			/api/v1/time/probe [post]
func (a *API) probeTimeHandler(w http.ResponseWriter, r *http.Request) {
	if !a.config.Chain.ProbeEnabled {
		a.recordSecurityEvent(r, core.EventProbeRejected, core.SeverityMedium, map[string]string{
			"cause": "probe_disabled",
		})
		writeError(w, http.StatusForbidden, "Time probe is disabled", nil, a.logger)
		return
	}

	var req probeRequest
	if !a.decodeJSON(w, r, &req, a.config.API.JSONBodyLimit) {
		return
	}

	parsed, err := url.Parse(req.RPCURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		a.recordSecurityEvent(r, core.EventProbeRejected, core.SeverityMedium, map[string]string{
			"cause": "invalid_url",
		})
		writeError(w, http.StatusBadRequest, "rpc_url must be an absolute http or https URL", err, a.logger)
		return
	}

	timeout := a.config.Chain.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	reading := chain.FetchRPC(r.Context(), client, req.RPCURL, time.Now, a.logger)

	a.respondJSON(w, map[string]interface{}{
		"endpoint":     parsed.Redacted(),
		"timestamp":    reading.Timestamp,
		"block_number": reading.BlockNumber,
		"is_accurate":  reading.Accurate,
	}, http.StatusOK)
}
