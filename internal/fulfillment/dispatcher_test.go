package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
	"github.com/Sanjeet990/MarswaveHome/internal/identity"
)

// fakeResolver resolves every token to a fixed user key.
type fakeResolver struct {
	userKey string
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.userKey, nil
}

// fakeStore is an in-memory device.Store.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]bool
	devices map[string]map[string]*device.Record
	patches []patchCall
}

type patchCall struct {
	userKey  string
	deviceID string
	state    device.State
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]bool),
		devices: make(map[string]map[string]*device.Record),
	}
}

func (s *fakeStore) addDevice(userKey string, rec *device.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey] = true
	if s.devices[userKey] == nil {
		s.devices[userKey] = make(map[string]*device.Record)
	}
	s.devices[userKey][rec.ID] = rec
}

func (s *fakeStore) UserExists(ctx context.Context, userKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userKey], nil
}

func (s *fakeStore) EnsureUser(ctx context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey] = true
	return nil
}

func (s *fakeStore) ListDevices(ctx context.Context, userKey string) ([]device.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []device.Record
	for _, rec := range s.devices[userKey] {
		records = append(records, *rec.Clone())
	}
	return records, nil
}

func (s *fakeStore) GetDevice(ctx context.Context, userKey, id string) (*device.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.devices[userKey][id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return rec.Clone(), nil
}

func (s *fakeStore) PatchState(ctx context.Context, userKey, id string, state device.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.devices[userKey][id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	s.patches = append(s.patches, patchCall{userKey, id, state.Clone()})
	mergeState(rec.States, state)
	return nil
}

func (s *fakeStore) CreateDevice(ctx context.Context, userKey string, rec *device.Record) error {
	s.addDevice(userKey, rec)
	return nil
}

func (s *fakeStore) patchesFor(deviceID string) []patchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []patchCall
	for _, p := range s.patches {
		if p.deviceID == deviceID {
			out = append(out, p)
		}
	}
	return out
}

// fakeReporter captures report calls for assertion.
type fakeReporter struct {
	mu    sync.Mutex
	calls []map[string]device.State
	done  chan struct{}
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{done: make(chan struct{}, 8)}
}

func (r *fakeReporter) ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error {
	r.mu.Lock()
	r.calls = append(r.calls, states)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *fakeReporter) wait(t *testing.T) map[string]device.State {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state report")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func testDispatcher(store *fakeStore, reporter Reporter) *Dispatcher {
	return NewDispatcher(Deps{
		Resolver: &fakeResolver{userKey: "alice@example.com"},
		Store:    store,
		Reporter: reporter,
	})
}

func lampRecord(id string) *device.Record {
	return &device.Record{
		ID:     id,
		Type:   "action.devices.types.LIGHT",
		Traits: []string{"action.devices.traits.OnOff"},
		Name:   "Lamp",
		States: device.State{"online": true, "on": false},
	}
}

func TestSyncUnknownUser(t *testing.T) {
	d := testDispatcher(newFakeStore(), nil)

	resp, err := d.Sync(context.Background(), "token", "req-1")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if resp.Payload.AgentUserID != "alice@example.com" {
		t.Errorf("expected agentUserId set, got %q", resp.Payload.AgentUserID)
	}
	if resp.Payload.Devices == nil || len(resp.Payload.Devices) != 0 {
		t.Errorf("expected empty non-nil device list, got %v", resp.Payload.Devices)
	}
}

func TestSyncProjectsDevices(t *testing.T) {
	store := newFakeStore()
	rec := lampRecord("lamp-1")
	rec.Manufacturer = "Marswave"
	rec.CustomData = map[string]any{"channel": float64(2)}
	store.addDevice("alice@example.com", rec)

	d := testDispatcher(store, nil)
	resp, err := d.Sync(context.Background(), "token", "req-1")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(resp.Payload.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(resp.Payload.Devices))
	}

	dev := resp.Payload.Devices[0]
	if dev.ID != "lamp-1" {
		t.Errorf("expected id lamp-1, got %s", dev.ID)
	}
	if dev.WillReportState {
		t.Error("willReportState must be false")
	}
	if dev.DeviceInfo.Manufacturer != "Marswave" {
		t.Errorf("expected deviceInfo projected, got %+v", dev.DeviceInfo)
	}
	if dev.CustomData["channel"] != float64(2) {
		t.Errorf("expected customData passed through, got %v", dev.CustomData)
	}
}

func TestQueryPartialFailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.addDevice("alice@example.com", lampRecord("lamp-a"))

	d := testDispatcher(store, nil)
	resp, err := d.Query(context.Background(), "token", "req-2", []DeviceRef{
		{ID: "lamp-a"}, {ID: "lamp-b"},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	a := resp.Payload.Devices["lamp-a"]
	if a["status"] != StatusSuccess {
		t.Errorf("expected lamp-a SUCCESS, got %v", a)
	}
	if a["on"] != false || a["online"] != true {
		t.Errorf("expected lamp-a full state, got %v", a)
	}

	b := resp.Payload.Devices["lamp-b"]
	if b["status"] != StatusError {
		t.Errorf("expected lamp-b ERROR, got %v", b)
	}
	if b["errorCode"] != CodeDeviceNotFound {
		t.Errorf("expected deviceNotFound code, got %v", b["errorCode"])
	}
}

func TestExecuteSuccessBucketAndErrors(t *testing.T) {
	store := newFakeStore()
	store.addDevice("alice@example.com", lampRecord("lamp-1"))
	store.addDevice("alice@example.com", lampRecord("lamp-2"))
	offline := lampRecord("lamp-3")
	offline.States["online"] = false
	store.addDevice("alice@example.com", offline)

	d := testDispatcher(store, nil)
	resp, err := d.Execute(context.Background(), "token", "req-3", []CommandGroup{{
		Devices: []DeviceRef{{ID: "lamp-1"}, {ID: "lamp-2"}, {ID: "lamp-3"}, {ID: "ghost"}},
		Execution: []Execution{{
			Command: CommandOnOff,
			Params:  map[string]any{"on": true},
		}},
	}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var success *ExecuteResult
	var errorEntries []ExecuteResult
	for i := range resp.Payload.Commands {
		entry := &resp.Payload.Commands[i]
		if entry.Status == StatusSuccess {
			if success != nil {
				t.Fatal("expected a single SUCCESS bucket")
			}
			success = entry
		} else {
			errorEntries = append(errorEntries, *entry)
		}
	}

	if success == nil {
		t.Fatal("expected a SUCCESS entry")
	}
	if len(success.IDs) != 2 {
		t.Errorf("expected 2 succeeding ids, got %v", success.IDs)
	}
	if success.States["on"] != true || success.States["online"] != true {
		t.Errorf("unexpected success states: %v", success.States)
	}

	if len(errorEntries) != 2 {
		t.Fatalf("expected one ERROR entry per failing device, got %d", len(errorEntries))
	}
	codes := map[string]string{}
	for _, entry := range errorEntries {
		if len(entry.IDs) != 1 {
			t.Errorf("error entries carry exactly one id, got %v", entry.IDs)
			continue
		}
		codes[entry.IDs[0]] = entry.ErrorCode
	}
	if codes["lamp-3"] != CodeDeviceOffline {
		t.Errorf("expected lamp-3 deviceOffline, got %q", codes["lamp-3"])
	}
	if codes["ghost"] != CodeDeviceNotFound {
		t.Errorf("expected ghost deviceNotFound, got %q", codes["ghost"])
	}
}

func TestExecuteOfflineDeviceNotPersisted(t *testing.T) {
	store := newFakeStore()
	offline := lampRecord("lamp-1")
	offline.States["online"] = false
	store.addDevice("alice@example.com", offline)

	d := testDispatcher(store, nil)
	_, err := d.Execute(context.Background(), "token", "req-4", []CommandGroup{{
		Devices:   []DeviceRef{{ID: "lamp-1"}},
		Execution: []Execution{{Command: CommandOnOff, Params: map[string]any{"on": true}}},
	}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if patches := store.patchesFor("lamp-1"); len(patches) != 0 {
		t.Errorf("offline device must not be written, got %d patches", len(patches))
	}
}

func TestExecuteUnknownCommandNotPersisted(t *testing.T) {
	store := newFakeStore()
	store.addDevice("alice@example.com", lampRecord("lamp-1"))

	d := testDispatcher(store, nil)
	resp, err := d.Execute(context.Background(), "token", "req-5", []CommandGroup{{
		Devices:   []DeviceRef{{ID: "lamp-1"}},
		Execution: []Execution{{Command: "action.devices.commands.Levitate"}},
	}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(resp.Payload.Commands) != 1 || resp.Payload.Commands[0].ErrorCode != CodeActionNotAvailable {
		t.Errorf("expected single actionNotAvailable entry, got %+v", resp.Payload.Commands)
	}
	if patches := store.patchesFor("lamp-1"); len(patches) != 0 {
		t.Errorf("unknown command must not be written, got %d patches", len(patches))
	}
}

func TestExecuteReportsStateAsync(t *testing.T) {
	store := newFakeStore()
	store.addDevice("alice@example.com", lampRecord("lamp-1"))
	reporter := newFakeReporter()

	d := testDispatcher(store, reporter)
	_, err := d.Execute(context.Background(), "token", "req-6", []CommandGroup{{
		Devices:   []DeviceRef{{ID: "lamp-1"}},
		Execution: []Execution{{Command: CommandOnOff, Params: map[string]any{"on": true}}},
	}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	reported := reporter.wait(t)
	if reported["lamp-1"]["on"] != true {
		t.Errorf("expected lamp-1 state reported, got %v", reported)
	}
}

func TestExecuteSequentialExecutionsSeeEarlierState(t *testing.T) {
	store := newFakeStore()
	rec := lampRecord("timer-1")
	rec.States["timerRemainingSec"] = float64(-1)
	store.addDevice("alice@example.com", rec)

	// Start a timer then adjust it within the same group; the adjust must
	// observe the started timer, not the sentinel.
	d := testDispatcher(store, nil)
	resp, err := d.Execute(context.Background(), "token", "req-7", []CommandGroup{{
		Devices: []DeviceRef{{ID: "timer-1"}},
		Execution: []Execution{
			{Command: CommandTimerStart, Params: map[string]any{"timerTimeSec": float64(60)}},
			{Command: CommandTimerAdjust, Params: map[string]any{"timerTimeSec": float64(-10)}},
		},
	}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(resp.Payload.Commands) != 1 || resp.Payload.Commands[0].Status != StatusSuccess {
		t.Fatalf("expected single SUCCESS entry, got %+v", resp.Payload.Commands)
	}
	if resp.Payload.Commands[0].States["timerRemainingSec"] != float64(50) {
		t.Errorf("expected 50 remaining after start+adjust, got %v",
			resp.Payload.Commands[0].States["timerRemainingSec"])
	}
}

func TestHandleUnauthenticated(t *testing.T) {
	d := NewDispatcher(Deps{
		Resolver: &fakeResolver{err: identity.ErrUnauthenticated},
		Store:    newFakeStore(),
	})

	_, err := d.Handle(context.Background(), "bad", &Request{
		RequestID: "req-8",
		Inputs:    []Input{{Intent: IntentSync}},
	})
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated to propagate, got %v", err)
	}
}

func TestHandleInvalidRequests(t *testing.T) {
	d := testDispatcher(newFakeStore(), nil)

	_, err := d.Handle(context.Background(), "token", &Request{RequestID: "req-9"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty inputs, got %v", err)
	}

	_, err = d.Handle(context.Background(), "token", &Request{
		RequestID: "req-10",
		Inputs:    []Input{{Intent: "action.devices.REBOOT"}},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for unknown intent, got %v", err)
	}
}

func TestHandleDisconnect(t *testing.T) {
	d := testDispatcher(newFakeStore(), nil)

	resp, err := d.Handle(context.Background(), "token", &Request{
		RequestID: "req-11",
		Inputs:    []Input{{Intent: IntentDisconnect}},
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if _, ok := resp.(*DisconnectResponse); !ok {
		t.Errorf("expected DisconnectResponse, got %T", resp)
	}
}
