package fulfillment

import (
	"github.com/Sanjeet990/MarswaveHome/internal/device"
)

// Command identifiers as they appear on the wire.
const (
	CommandArmDisarm           = "action.devices.commands.ArmDisarm"
	CommandBrightnessAbsolute  = "action.devices.commands.BrightnessAbsolute"
	CommandGetCameraStream     = "action.devices.commands.GetCameraStream"
	CommandColorAbsolute       = "action.devices.commands.ColorAbsolute"
	CommandDock                = "action.devices.commands.Dock"
	CommandSetFanSpeed         = "action.devices.commands.SetFanSpeed"
	CommandReverse             = "action.devices.commands.Reverse"
	CommandLocate              = "action.devices.commands.Locate"
	CommandLockUnlock          = "action.devices.commands.LockUnlock"
	CommandSetModes            = "action.devices.commands.SetModes"
	CommandOnOff               = "action.devices.commands.OnOff"
	CommandOpenClose           = "action.devices.commands.OpenClose"
	CommandActivateScene       = "action.devices.commands.ActivateScene"
	CommandStartStop           = "action.devices.commands.StartStop"
	CommandPauseUnpause        = "action.devices.commands.PauseUnpause"
	CommandSetTemperature      = "action.devices.commands.SetTemperature"
	CommandThermostatSetpoint  = "action.devices.commands.ThermostatTemperatureSetpoint"
	CommandThermostatSetRange  = "action.devices.commands.ThermostatTemperatureSetRange"
	CommandThermostatSetMode   = "action.devices.commands.ThermostatSetMode"
	CommandTimerStart          = "action.devices.commands.TimerStart"
	CommandTimerAdjust         = "action.devices.commands.TimerAdjust"
	CommandTimerPause          = "action.devices.commands.TimerPause"
	CommandTimerResume         = "action.devices.commands.TimerResume"
	CommandTimerCancel         = "action.devices.commands.TimerCancel"
	CommandSetToggles          = "action.devices.commands.SetToggles"
)

// noTimerSentinel marks "no active timer" in states.timerRemainingSec.
// Every timer command except TimerStart must check it before mutating.
const noTimerSentinel = -1

// commandHandler computes a device's state transition for one command.
//
// It returns the fields to persist (merged into states, untouched fields
// preserved) and the fields to echo back to the platform. The two sets
// are not always the same: several commands report unchanged sibling
// fields back to satisfy platform expectations.
//
// Handlers may assume the online precondition has already passed.
type commandHandler func(rec *device.Record, params map[string]any) (update, echo device.State, err error)

// commandRegistry maps wire command names to their handlers. The set is
// closed; unknown identifiers fail with actionNotAvailable.
var commandRegistry = map[string]commandHandler{
	CommandArmDisarm:          applyArmDisarm,
	CommandBrightnessAbsolute: applyBrightnessAbsolute,
	CommandGetCameraStream:    applyGetCameraStream,
	CommandColorAbsolute:      applyColorAbsolute,
	CommandDock:               applyDock,
	CommandSetFanSpeed:        applySetFanSpeed,
	CommandReverse:            applyReverse,
	CommandLocate:             applyLocate,
	CommandLockUnlock:         applyLockUnlock,
	CommandSetModes:           applySetModes,
	CommandOnOff:              applyOnOff,
	CommandOpenClose:          applyOpenClose,
	CommandActivateScene:      applyActivateScene,
	CommandStartStop:          applyStartStop,
	CommandPauseUnpause:       applyPauseUnpause,
	CommandSetTemperature:     applySetTemperature,
	CommandThermostatSetpoint: applyThermostatSetpoint,
	CommandThermostatSetRange: applyThermostatSetRange,
	CommandThermostatSetMode:  applyThermostatSetMode,
	CommandTimerStart:         applyTimerStart,
	CommandTimerAdjust:        applyTimerAdjust,
	CommandTimerPause:         applyTimerPause,
	CommandTimerResume:        applyTimerResume,
	CommandTimerCancel:        applyTimerCancel,
	CommandSetToggles:         applySetToggles,
}

// Apply computes the state transition for one command against one device.
//
// It enforces the shared preconditions (device online, command known),
// then delegates to the command's handler. The returned update holds the
// minimal fields to persist; the returned response holds what to echo to
// the platform, always including online:true on success.
//
// Apply never mutates rec and performs no I/O.
func Apply(rec *device.Record, command string, params map[string]any) (update, response device.State, err error) {
	if !rec.States.Online() {
		return nil, nil, ErrDeviceOffline
	}

	handler, ok := commandRegistry[command]
	if !ok {
		return nil, nil, ErrActionNotAvailable
	}

	update, echo, err := handler(rec, params)
	if err != nil {
		return nil, nil, err
	}

	response = device.State{"online": true}
	for k, v := range echo {
		response[k] = v
	}
	return update, response, nil
}

// applyArmDisarm handles arm, disarm, and cancel. Cancel inverts the
// previous armed state rather than clearing it.
func applyArmDisarm(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	isArmed, _ := rec.States.Bool("isArmed")
	if arm, ok := paramBool(params, "arm"); ok {
		isArmed = arm
	} else if cancel, ok := paramBool(params, "cancel"); ok && cancel {
		isArmed = !isArmed
	}

	update := device.State{"isArmed": isArmed}
	echo := device.State{"isArmed": isArmed}
	if armLevel, ok := paramString(params, "armLevel"); ok && armLevel != "" {
		update["currentArmLevel"] = armLevel
		echo["currentArmLevel"] = armLevel
	}
	return update, echo, nil
}

func applyBrightnessAbsolute(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	brightness, ok := paramFloat(params, "brightness")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	update := device.State{"brightness": brightness}
	return update, update.Clone(), nil
}

// applyGetCameraStream returns the device's stream URL without
// persisting anything. The URL lives in the device's attributes.
func applyGetCameraStream(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	url, _ := rec.Attributes["cameraStreamAccessUrl"].(string)
	if url == "" {
		return nil, nil, ErrNotSupported
	}
	return nil, device.State{"cameraStreamAccessUrl": url}, nil
}

// applyColorAbsolute accepts exactly one color encoding. Precedence when
// several are present: RGB, then HSV, then temperature. The persisted
// color object replaces the previous encoding rather than merging with
// it, so stale sibling encodings are explicitly cleared.
func applyColorAbsolute(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	colorParams, ok := paramMap(params, "color")
	if !ok {
		return nil, nil, ErrNotSupported
	}

	var key string
	var value any
	if rgb, found := colorParams["spectrumRGB"]; found {
		key, value = "spectrumRgb", rgb
	} else if hsv, found := colorParams["spectrumHSV"]; found {
		key, value = "spectrumHsv", hsv
	} else if temp, found := colorParams["temperature"]; found {
		key, value = "temperatureK", temp
	} else {
		return nil, nil, ErrNotSupported
	}

	// nil entries delete the other encodings on merge.
	persisted := map[string]any{
		"spectrumRgb":  nil,
		"spectrumHsv":  nil,
		"temperatureK": nil,
	}
	persisted[key] = value

	update := device.State{"color": persisted}
	echo := device.State{"color": map[string]any{key: value}}
	return update, echo, nil
}

func applyDock(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	update := device.State{"isDocked": true}
	return update, update.Clone(), nil
}

func applySetFanSpeed(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	fanSpeed, ok := paramString(params, "fanSpeed")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	update := device.State{"currentFanSpeedSetting": fanSpeed}
	return update, update.Clone(), nil
}

// applyReverse persists the reversal but echoes nothing beyond the
// online marker.
func applyReverse(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	return device.State{"currentFanSpeedReverse": true}, nil, nil
}

// applyLocate persists the silence preference alongside the alert flag
// but only echoes the alert.
func applyLocate(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	silent, _ := paramBool(params, "silent")
	update := device.State{
		"silent":         silent,
		"generatedAlert": true,
	}
	return update, device.State{"generatedAlert": true}, nil
}

func applyLockUnlock(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	lock, ok := paramBool(params, "lock")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	update := device.State{"isLocked": lock}
	return update, update.Clone(), nil
}

// applySetModes merges the requested settings into the existing
// per-mode mapping rather than replacing it wholesale.
func applySetModes(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	requested, ok := paramMap(params, "updateModeSettings")
	if !ok {
		return nil, nil, ErrNotSupported
	}

	settings := map[string]any{}
	if current, found := rec.States.Map("currentModeSettings"); found {
		for k, v := range current {
			settings[k] = v
		}
	}
	for mode, setting := range requested {
		settings[mode] = setting
	}

	update := device.State{"currentModeSettings": settings}
	return update, update.Clone(), nil
}

func applyOnOff(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	on, ok := paramBool(params, "on")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	update := device.State{"on": on}
	return update, update.Clone(), nil
}

// applyOpenClose distinguishes multi-direction devices (declared via
// attributes.openDirection) from single-direction ones. Multi-direction
// devices update only the matching entry in the ordered openState list
// and echo nothing; single-direction devices write and echo a scalar
// percentage.
func applyOpenClose(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	openPercent, ok := paramFloat(params, "openPercent")
	if !ok {
		return nil, nil, ErrNotSupported
	}

	if _, multi := rec.Attributes["openDirection"]; multi {
		direction, _ := paramString(params, "openDirection")

		current, _ := rec.States["openState"].([]any)
		updated := make([]any, 0, len(current))
		for _, entry := range current {
			entryMap, isMap := entry.(map[string]any)
			if !isMap {
				updated = append(updated, entry)
				continue
			}
			next := make(map[string]any, len(entryMap))
			for k, v := range entryMap {
				next[k] = v
			}
			if next["openDirection"] == direction {
				next["openPercent"] = openPercent
			}
			updated = append(updated, next)
		}

		return device.State{"openState": updated}, nil, nil
	}

	update := device.State{"openPercent": openPercent}
	return update, update.Clone(), nil
}

// applyActivateScene persists the deactivate flag. Scenes are
// stateless, so nothing is echoed.
func applyActivateScene(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	deactivate, _ := paramBool(params, "deactivate")
	return device.State{"deactivate": deactivate}, nil, nil
}

// applyStartStop echoes the unchanged pause flag alongside the new
// running flag.
func applyStartStop(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	start, ok := paramBool(params, "start")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	echo := device.State{"isRunning": start}
	copyIfPresent(rec.States, echo, "isPaused")
	return device.State{"isRunning": start}, echo, nil
}

// applyPauseUnpause echoes the unchanged running flag alongside the new
// pause flag.
func applyPauseUnpause(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	pause, ok := paramBool(params, "pause")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	echo := device.State{"isPaused": pause}
	copyIfPresent(rec.States, echo, "isRunning")
	return device.State{"isPaused": pause}, echo, nil
}

// applySetTemperature echoes the unchanged ambient reading alongside the
// new setpoint.
func applySetTemperature(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	temperature, ok := paramFloat(params, "temperature")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	echo := device.State{"temperatureSetpointCelsius": temperature}
	copyIfPresent(rec.States, echo, "temperatureAmbientCelsius")
	return device.State{"temperatureSetpointCelsius": temperature}, echo, nil
}

func applyThermostatSetpoint(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	setpoint, ok := paramFloat(params, "thermostatTemperatureSetpoint")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	echo := device.State{"thermostatTemperatureSetpoint": setpoint}
	copyIfPresent(rec.States, echo,
		"thermostatMode",
		"thermostatTemperatureAmbient",
		"thermostatHumidityAmbient",
	)
	return device.State{"thermostatTemperatureSetpoint": setpoint}, echo, nil
}

func applyThermostatSetRange(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	low, lowOK := paramFloat(params, "thermostatTemperatureSetpointLow")
	high, highOK := paramFloat(params, "thermostatTemperatureSetpointHigh")
	if !lowOK || !highOK {
		return nil, nil, ErrNotSupported
	}
	update := device.State{
		"thermostatTemperatureSetpointLow":  low,
		"thermostatTemperatureSetpointHigh": high,
	}
	echo := device.State{}
	copyIfPresent(rec.States, echo,
		"thermostatTemperatureSetpoint",
		"thermostatMode",
		"thermostatTemperatureAmbient",
		"thermostatHumidityAmbient",
	)
	return update, echo, nil
}

func applyThermostatSetMode(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	mode, ok := paramString(params, "thermostatMode")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	echo := device.State{"thermostatMode": mode}
	copyIfPresent(rec.States, echo,
		"thermostatTemperatureSetpoint",
		"thermostatTemperatureAmbient",
		"thermostatHumidityAmbient",
	)
	return device.State{"thermostatMode": mode}, echo, nil
}

// applyTimerStart is the only timer command that skips the sentinel
// check; starting a timer over an existing one simply replaces it.
func applyTimerStart(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	seconds, ok := paramFloat(params, "timerTimeSec")
	if !ok {
		return nil, nil, ErrNotSupported
	}
	update := device.State{"timerRemainingSec": seconds}
	return update, update.Clone(), nil
}

func applyTimerAdjust(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	remaining, ok := activeTimerSeconds(rec)
	if !ok {
		return nil, nil, ErrNoTimerExists
	}
	delta, ok := paramFloat(params, "timerTimeSec")
	if !ok {
		return nil, nil, ErrNotSupported
	}

	next := remaining + delta
	if next < 0 {
		return nil, nil, ErrValueOutOfRange
	}

	update := device.State{"timerRemainingSec": next}
	return update, update.Clone(), nil
}

func applyTimerPause(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	if _, ok := activeTimerSeconds(rec); !ok {
		return nil, nil, ErrNoTimerExists
	}
	update := device.State{"timerPaused": true}
	return update, update.Clone(), nil
}

func applyTimerResume(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	if _, ok := activeTimerSeconds(rec); !ok {
		return nil, nil, ErrNoTimerExists
	}
	update := device.State{"timerPaused": false}
	return update, update.Clone(), nil
}

// applyTimerCancel persists the sentinel but echoes zero remaining
// seconds, matching platform expectations for a cancelled timer.
func applyTimerCancel(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	if _, ok := activeTimerSeconds(rec); !ok {
		return nil, nil, ErrNoTimerExists
	}
	update := device.State{"timerRemainingSec": float64(noTimerSentinel)}
	return update, device.State{"timerRemainingSec": float64(0)}, nil
}

// applySetToggles merges the requested settings into the existing
// per-toggle mapping rather than replacing it wholesale.
func applySetToggles(rec *device.Record, params map[string]any) (device.State, device.State, error) {
	requested, ok := paramMap(params, "updateToggleSettings")
	if !ok {
		return nil, nil, ErrNotSupported
	}

	settings := map[string]any{}
	if current, found := rec.States.Map("currentToggleSettings"); found {
		for k, v := range current {
			settings[k] = v
		}
	}
	for toggle, enable := range requested {
		settings[toggle] = enable
	}

	update := device.State{"currentToggleSettings": settings}
	return update, update.Clone(), nil
}

// activeTimerSeconds reads the remaining timer seconds, reporting false
// when the no-timer sentinel is in effect or no timer field exists.
func activeTimerSeconds(rec *device.Record) (float64, bool) {
	raw, exists := rec.States["timerRemainingSec"]
	if !exists {
		return 0, false
	}
	seconds, ok := toFloat(raw)
	if !ok || seconds == noTimerSentinel {
		return 0, false
	}
	return seconds, true
}

// copyIfPresent copies the named fields from src into dst, skipping
// fields src does not hold.
func copyIfPresent(src, dst device.State, keys ...string) {
	for _, key := range keys {
		if v, ok := src[key]; ok {
			dst[key] = v
		}
	}
}

func paramBool(params map[string]any, key string) (bool, bool) {
	v, ok := params[key].(bool)
	return v, ok
}

func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	return toFloat(params[key])
}

func paramMap(params map[string]any, key string) (map[string]any, bool) {
	v, ok := params[key].(map[string]any)
	return v, ok
}

// toFloat normalizes the numeric types JSON decoding and tests produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
