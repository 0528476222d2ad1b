package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"foscam2mqtt/internal/foscam"
	"foscam2mqtt/internal/logger"
)

// Device is the part of the camera client settings need.
type Device interface {
	Query(ctx context.Context, command string, params map[string]string) (foscam.Result, error)
}

// ErrInvalidValue is returned for set commands whose payload the camera
// cannot take.
var ErrInvalidValue = errors.New("invalid setting value")

// Setting mirrors one camera setting to <root>/<Name> and accepts changes on
// <root>/<Name>/set.
type Setting struct {
	Name  string
	Read  func(ctx context.Context, dev Device) (string, error)
	Write func(ctx context.Context, dev Device, value string) (string, error)
}

func (s Setting) CommandTopic() string {
	return s.Name + "/set"
}

// Settings is the mirrored setting table.
var Settings = []Setting{
	intSetting("status_led", "getLedEnableState", "isEnable", "setLedEnableState", "isEnable", 0, 1),
	{Name: "night_mode", Read: readNightMode, Write: writeNightMode},
	intSetting("ring_volume", "getAudioVolume", "volume", "setAudioVolume", "volume", 0, 100),
	intSetting("image/hdr", "getHdrMode", "mode", "setHdrMode", "mode", 0, 1),
	intSetting("image/mirror", "getMirrorAndFlipSetting", "isMirror", "mirrorVideo", "isMirror", 0, 1),
	intSetting("image/flip", "getMirrorAndFlipSetting", "isFlip", "flipVideo", "isFlip", 0, 1),
}

// LookupSetting finds a setting by name.
func LookupSetting(name string) (Setting, bool) {
	for _, s := range Settings {
		if s.Name == name {
			return s, true
		}
	}
	return Setting{}, false
}

// RefreshSettings polls every setting once and republishes it. A failing
// setting is logged and skipped.
func (p *Publisher) RefreshSettings(ctx context.Context, dev Device) {
	for _, s := range Settings {
		value, err := s.Read(ctx, dev)
		if err != nil {
			logger.Warnf("Failed to read %s from device: %v", s.Name, err)
			continue
		}
		logger.Debugf("Retrieved %s from device: %s", s.Name, value)
		_ = p.Publish(s.Name, value, Retained)
	}
}

// ApplySetting writes a value to the camera and echoes the accepted value to
// the setting's state topic.
func (p *Publisher) ApplySetting(ctx context.Context, dev Device, name, value string) error {
	s, ok := LookupSetting(name)
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}
	accepted, err := s.Write(ctx, dev, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	logger.Infof("Setting %s changed to %s", name, accepted)
	_ = p.Publish(s.Name, accepted, Retained)
	return nil
}

func intSetting(name, getCmd, getField, setCmd, setField string, min, max int) Setting {
	return Setting{
		Name: name,
		Read: func(ctx context.Context, dev Device) (string, error) {
			res, err := dev.Query(ctx, getCmd, nil)
			if err != nil {
				return "", err
			}
			n, err := res.Int(getField)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(n), nil
		},
		Write: func(ctx context.Context, dev Device, value string) (string, error) {
			n, err := strconv.Atoi(value)
			if err != nil || n < min || n > max {
				return "", fmt.Errorf("%w: %q (want %d..%d)", ErrInvalidValue, value, min, max)
			}
			v := strconv.Itoa(n)
			if _, err := dev.Query(ctx, setCmd, map[string]string{setField: v}); err != nil {
				return "", err
			}
			return v, nil
		},
	}
}

const (
	nightModeAuto = "auto"
	nightModeOn   = "on"
	nightModeOff  = "off"
)

func readNightMode(ctx context.Context, dev Device) (string, error) {
	res, err := dev.Query(ctx, "getInfraLedConfig", nil)
	if err != nil {
		return "", err
	}
	mode, err := res.Int("mode")
	if err != nil {
		return "", err
	}
	if mode == 0 {
		return nightModeAuto, nil
	}

	state, err := dev.Query(ctx, "getDevState", nil)
	if err != nil {
		return "", err
	}
	led, err := state.Int("infraLedState")
	if err != nil {
		return "", err
	}
	if led == 1 {
		return nightModeOn, nil
	}
	return nightModeOff, nil
}

func writeNightMode(ctx context.Context, dev Device, value string) (string, error) {
	switch value {
	case nightModeAuto:
		if _, err := dev.Query(ctx, "setInfraLedConfig", map[string]string{"mode": "0"}); err != nil {
			return "", err
		}
	case nightModeOn, nightModeOff:
		if _, err := dev.Query(ctx, "setInfraLedConfig", map[string]string{"mode": "1"}); err != nil {
			return "", err
		}
		cmd := "closeInfraLed"
		if value == nightModeOn {
			cmd = "openInfraLed"
		}
		if _, err := dev.Query(ctx, cmd, nil); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q (want auto, on or off)", ErrInvalidValue, value)
	}
	return value, nil
}
