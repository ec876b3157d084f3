package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
	"github.com/Sanjeet990/MarswaveHome/internal/fulfillment"
	"github.com/Sanjeet990/MarswaveHome/internal/identity"
)

// handleFulfillment decodes one webhook request, extracts the bearer
// token, and hands both to the dispatcher. Per-device failures are
// already folded into the response by the dispatcher; only request-fatal
// conditions surface here as HTTP errors.
func (s *Server) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	var req fulfillment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	token := bearerToken(r)

	resp, err := s.dispatcher.Handle(r.Context(), token, &req)
	if err != nil {
		s.writeDispatchError(w, r, &req, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeDispatchError maps request-fatal dispatcher failures to HTTP
// status codes. Internal detail stays in the log, not the response.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, req *fulfillment.Request, err error) {
	requestID := r.Context().Value(ctxKeyRequestID)

	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		s.logger.Warn("fulfillment request rejected",
			"request_id", requestID,
			"platform_request_id", req.RequestID,
			"error", err,
		)
		writeUnauthorized(w, "invalid or missing credentials")
	case errors.Is(err, fulfillment.ErrInvalidRequest):
		writeBadRequest(w, "malformed intent request")
	case errors.Is(err, device.ErrStoreUnavailable):
		s.logger.Error("device store unavailable",
			"request_id", requestID,
			"platform_request_id", req.RequestID,
			"error", err,
		)
		writeUnavailable(w, "device store unavailable")
	default:
		s.logger.Error("fulfillment request failed",
			"request_id", requestID,
			"platform_request_id", req.RequestID,
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}

// bearerToken extracts the bearer credential from the Authorization
// header. Returns "" when absent or not a bearer scheme.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
