package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
)

// reportStateRequest is the wire shape of one report-state call.
type reportStateRequest struct {
	RequestID   string             `json:"requestId"`
	AgentUserID string             `json:"agentUserId"`
	Payload     reportStatePayload `json:"payload"`
}

type reportStatePayload struct {
	Devices reportStateDevices `json:"devices"`
}

type reportStateDevices struct {
	States map[string]device.State `json:"states"`
}

// HomeGraph reports device state to the assistant platform over HTTP.
type HomeGraph struct {
	url    string
	token  string
	client *http.Client
}

// NewHomeGraph creates a reporter against the given report-state endpoint.
// The token, if non-empty, is sent as a bearer credential.
func NewHomeGraph(url, token string, timeout time.Duration) *HomeGraph {
	return &HomeGraph{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// ReportState posts the per-device state fragments for one user.
// Each call carries a fresh request id.
func (h *HomeGraph) ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error {
	body, err := json.Marshal(reportStateRequest{
		RequestID:   uuid.NewString(),
		AgentUserID: agentUserID,
		Payload: reportStatePayload{
			Devices: reportStateDevices{States: states},
		},
	})
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
