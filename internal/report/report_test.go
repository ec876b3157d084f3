package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
)

func TestHomeGraphReportState(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hg := NewHomeGraph(srv.URL, "hg-token", 5*time.Second)
	err := hg.ReportState(context.Background(), "alice@example.com", map[string]device.State{
		"lamp-1": {"online": true, "on": true},
	})
	if err != nil {
		t.Fatalf("ReportState failed: %v", err)
	}

	if gotAuth != "Bearer hg-token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}

	var decoded struct {
		RequestID   string `json:"requestId"`
		AgentUserID string `json:"agentUserId"`
		Payload     struct {
			Devices struct {
				States map[string]map[string]any `json:"states"`
			} `json:"devices"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decoding report body: %v", err)
	}
	if decoded.RequestID == "" {
		t.Error("expected a generated requestId")
	}
	if decoded.AgentUserID != "alice@example.com" {
		t.Errorf("expected agentUserId, got %q", decoded.AgentUserID)
	}
	if decoded.Payload.Devices.States["lamp-1"]["on"] != true {
		t.Errorf("expected lamp-1 fragment, got %v", decoded.Payload.Devices.States)
	}
}

func TestHomeGraphServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hg := NewHomeGraph(srv.URL, "", 5*time.Second)
	err := hg.ReportState(context.Background(), "alice@example.com", map[string]device.State{
		"lamp-1": {"online": true},
	})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

type fakePublisher struct {
	published map[string][]byte
	err       error
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	if p.published == nil {
		p.published = make(map[string][]byte)
	}
	p.published[topic] = payload
	return nil
}

func TestBroadcastPublishesPerDevice(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroadcast(pub)

	err := b.ReportState(context.Background(), "alice@example.com", map[string]device.State{
		"lamp-1": {"online": true, "on": true},
		"lamp-2": {"online": true, "on": false},
	})
	if err != nil {
		t.Fatalf("ReportState failed: %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("expected 2 published topics, got %d", len(pub.published))
	}
	payload, ok := pub.published["marswave/state/alice%40example.com/lamp-1"]
	if !ok {
		t.Fatalf("expected lamp-1 topic, got %v", pub.published)
	}
	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if state["on"] != true {
		t.Errorf("expected on=true in payload, got %v", state)
	}
}

func TestBroadcastPropagatesPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	b := NewBroadcast(pub)

	err := b.ReportState(context.Background(), "alice@example.com", map[string]device.State{
		"lamp-1": {"online": true},
	})
	if err == nil {
		t.Fatal("expected publish error to propagate")
	}
}

type countingReporter struct {
	calls int
	err   error
}

func (c *countingReporter) ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error {
	c.calls++
	return c.err
}

func TestMultiInvokesAllDespiteFailure(t *testing.T) {
	failing := &countingReporter{err: errors.New("boom")}
	succeeding := &countingReporter{}

	m := NewMulti(failing, nil, succeeding)
	err := m.ReportState(context.Background(), "alice@example.com", map[string]device.State{
		"lamp-1": {"online": true},
	})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if failing.calls != 1 || succeeding.calls != 1 {
		t.Errorf("expected every reporter invoked, got %d and %d", failing.calls, succeeding.calls)
	}
}
