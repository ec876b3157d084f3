package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
	"github.com/Sanjeet990/MarswaveHome/internal/identity"
	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/logging"
)

// Reporter pushes resulting device state to the assistant platform and
// local subscribers after a successful execute. Best-effort: failures
// are logged, never surfaced to the caller.
type Reporter interface {
	ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error
}

// Recorder captures execution history for later analysis. Calls must
// not block the request path.
type Recorder interface {
	RecordExecution(userKey, deviceID, command, errorCode string)
	RecordIntent(userKey, intent string, deviceCount int)
}

// Deps holds the dispatcher's dependencies. Resolver and Store are
// required; Reporter and Recorder may be nil.
type Deps struct {
	Resolver identity.Resolver
	Store    device.Store
	Reporter Reporter
	Recorder Recorder
	Logger   *logging.Logger
}

// Dispatcher orchestrates the four webhook intents. It holds no
// per-request state; all methods are safe for concurrent use.
type Dispatcher struct {
	deps Deps
}

// NewDispatcher creates a dispatcher from its dependencies.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Dispatcher{deps: deps}
}

// Handle routes one decoded request to its intent handler. The returned
// value is the intent-specific response, ready for JSON encoding.
//
// Identity failures and store transport failures are request-fatal and
// returned as errors; everything else is captured inside the response.
func (d *Dispatcher) Handle(ctx context.Context, token string, req *Request) (any, error) {
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%w: request %s has no inputs", ErrInvalidRequest, req.RequestID)
	}

	input := req.Inputs[0]
	switch input.Intent {
	case IntentSync:
		return d.Sync(ctx, token, req.RequestID)
	case IntentQuery:
		return d.Query(ctx, token, req.RequestID, input.Payload.Devices)
	case IntentExecute:
		return d.Execute(ctx, token, req.RequestID, input.Payload.Commands)
	case IntentDisconnect:
		return d.Disconnect(ctx, token)
	default:
		return nil, fmt.Errorf("%w: unknown intent %q", ErrInvalidRequest, input.Intent)
	}
}

// Sync answers a discovery request with the user's device inventory.
//
// An unknown user is a normal outcome: the response carries the resolved
// identity and an empty device list, never an error.
func (d *Dispatcher) Sync(ctx context.Context, token, requestID string) (*SyncResponse, error) {
	userKey, err := d.deps.Resolver.Resolve(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving identity: %w", err)
	}

	resp := &SyncResponse{
		RequestID: requestID,
		Payload: SyncPayload{
			AgentUserID: userKey,
			Devices:     []DiscoveryDevice{},
		},
	}

	known, err := d.deps.Store.UserExists(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("checking user: %w", err)
	}
	if !known {
		d.deps.Logger.Info("sync for unknown user", "user", userKey)
		d.recordIntent(userKey, IntentSync, 0)
		return resp, nil
	}

	records, err := d.deps.Store.ListDevices(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	for i := range records {
		resp.Payload.Devices = append(resp.Payload.Devices, projectDiscovery(&records[i]))
	}

	d.recordIntent(userKey, IntentSync, len(records))
	return resp, nil
}

// projectDiscovery maps a stored record into the platform's discovery
// schema. willReportState is fixed false: the platform polls via QUERY
// rather than relying on proactive reports.
func projectDiscovery(rec *device.Record) DiscoveryDevice {
	return DiscoveryDevice{
		ID:              rec.ID,
		Type:            rec.Type,
		Traits:          orEmpty(rec.Traits),
		WillReportState: false,
		Name: DeviceName{
			DefaultNames: orEmpty(rec.DefaultNames),
			Name:         rec.Name,
			Nicknames:    orEmpty(rec.Nicknames),
		},
		Attributes: rec.Attributes,
		DeviceInfo: DeviceInfo{
			Manufacturer: rec.Manufacturer,
			Model:        rec.Model,
			HWVersion:    rec.HWVersion,
			SWVersion:    rec.SWVersion,
		},
		CustomData: rec.CustomData,
	}
}

// Query answers a state readback for the requested devices.
//
// Each device is fetched independently: a missing device yields a
// per-device error marker, never a request-level failure. The response
// is only assembled after every device's outcome is known.
func (d *Dispatcher) Query(ctx context.Context, token, requestID string, refs []DeviceRef) (*QueryResponse, error) {
	userKey, err := d.deps.Resolver.Resolve(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving identity: %w", err)
	}

	resp := &QueryResponse{
		RequestID: requestID,
		Payload: QueryPayload{
			Devices: make(map[string]map[string]any, len(refs)),
		},
	}

	for _, ref := range refs {
		rec, err := d.deps.Store.GetDevice(ctx, userKey, ref.ID)
		if err != nil {
			if errors.Is(err, device.ErrStoreUnavailable) {
				return nil, fmt.Errorf("fetching device %s: %w", ref.ID, err)
			}
			resp.Payload.Devices[ref.ID] = map[string]any{
				"status":    StatusError,
				"errorCode": errorCode(err),
			}
			continue
		}

		entry := map[string]any{"status": StatusSuccess}
		for k, v := range rec.States.Clone() {
			entry[k] = v
		}
		resp.Payload.Devices[ref.ID] = entry
	}

	d.recordIntent(userKey, IntentQuery, len(refs))
	return resp, nil
}

// Execute runs command groups against their target devices.
//
// Per command group, succeeding devices share one SUCCESS entry; each
// failing device gets its own ERROR entry with its wire code. One
// device's failure never aborts its siblings. After the response is
// assembled, resulting state is reported asynchronously off the request
// path.
func (d *Dispatcher) Execute(ctx context.Context, token, requestID string, groups []CommandGroup) (*ExecuteResponse, error) {
	userKey, err := d.deps.Resolver.Resolve(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving identity: %w", err)
	}

	resp := &ExecuteResponse{
		RequestID: requestID,
		Payload:   ExecutePayload{Commands: []ExecuteResult{}},
	}
	reportStates := make(map[string]device.State)

	deviceCount := 0
	for _, group := range groups {
		success := ExecuteResult{
			IDs:    []string{},
			Status: StatusSuccess,
		}

		for _, ref := range group.Devices {
			deviceCount++
			states, err := d.executeDevice(ctx, userKey, ref.ID, group.Execution)
			if err != nil {
				if errors.Is(err, device.ErrStoreUnavailable) {
					return nil, fmt.Errorf("executing on device %s: %w", ref.ID, err)
				}
				code := errorCode(err)
				resp.Payload.Commands = append(resp.Payload.Commands, ExecuteResult{
					IDs:       []string{ref.ID},
					Status:    StatusError,
					ErrorCode: code,
				})
				d.recordExecutions(userKey, ref.ID, group.Execution, code)
				continue
			}

			success.IDs = append(success.IDs, ref.ID)
			success.States = states
			reportStates[ref.ID] = states
			d.recordExecutions(userKey, ref.ID, group.Execution, "")
		}

		if len(success.IDs) > 0 {
			resp.Payload.Commands = append(resp.Payload.Commands, success)
		}
	}

	d.recordIntent(userKey, IntentExecute, deviceCount)
	d.reportAsync(ctx, userKey, reportStates)
	return resp, nil
}

// executeDevice applies a group's executions to one device in order.
//
// Each execution follows a strict read-modify-write sequence: the
// record is fetched once, each successful update is persisted as its
// own atomic patch, and the in-memory record is advanced so later
// executions in the group observe earlier results. Response fragments
// accumulate across executions.
func (d *Dispatcher) executeDevice(ctx context.Context, userKey, deviceID string, executions []Execution) (device.State, error) {
	rec, err := d.deps.Store.GetDevice(ctx, userKey, deviceID)
	if err != nil {
		return nil, err
	}
	rec = rec.Clone()

	combined := device.State{}
	for _, exec := range executions {
		update, response, err := Apply(rec, exec.Command, exec.Params)
		if err != nil {
			return nil, err
		}

		if len(update) > 0 {
			if err := d.deps.Store.PatchState(ctx, userKey, deviceID, update); err != nil {
				return nil, err
			}
			mergeState(rec.States, update)
		}
		for k, v := range response {
			combined[k] = v
		}
	}

	return combined, nil
}

// mergeState applies a patch to an in-memory state mapping with the
// same semantics the store uses: nested objects merge key-wise, nil
// values delete, everything else replaces.
func mergeState(target device.State, patch device.State) {
	for k, v := range patch {
		if v == nil {
			delete(target, k)
			continue
		}
		patchMap, patchIsMap := v.(map[string]any)
		targetMap, targetIsMap := target[k].(map[string]any)
		if patchIsMap && targetIsMap {
			mergeState(targetMap, patchMap)
			continue
		}
		target[k] = v
	}
}

// Disconnect acknowledges an account unlink. The platform stops sending
// intents for this user; no local state changes.
func (d *Dispatcher) Disconnect(ctx context.Context, token string) (*DisconnectResponse, error) {
	return &DisconnectResponse{}, nil
}

// reportAsync pushes resulting state to the reporter off the request
// path. The execute response has already been computed; a reporting
// failure is logged and otherwise ignored.
func (d *Dispatcher) reportAsync(ctx context.Context, userKey string, states map[string]device.State) {
	if d.deps.Reporter == nil || len(states) == 0 {
		return
	}

	reportCtx := context.WithoutCancel(ctx)
	go func() {
		if err := d.deps.Reporter.ReportState(reportCtx, userKey, states); err != nil {
			d.deps.Logger.Warn("state report failed",
				"user", userKey,
				"devices", len(states),
				"error", err,
			)
		}
	}()
}

func (d *Dispatcher) recordExecutions(userKey, deviceID string, executions []Execution, errorCode string) {
	if d.deps.Recorder == nil {
		return
	}
	for _, exec := range executions {
		d.deps.Recorder.RecordExecution(userKey, deviceID, exec.Command, errorCode)
	}
}

func (d *Dispatcher) recordIntent(userKey, intent string, deviceCount int) {
	if d.deps.Recorder == nil {
		return
	}
	d.deps.Recorder.RecordIntent(userKey, intent, deviceCount)
}

// orEmpty substitutes an empty slice for nil so JSON encodes [] not null.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
