package publisher

import (
	"fmt"

	"foscam2mqtt/internal/foscam"
	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
)

const manufacturer = "Foscam"

// DiscoveryParams carries everything discovery descriptors depend on.
type DiscoveryParams struct {
	TopicRoot      string
	DeviceName     string
	DateFormat     string // strftime, rendered into Home Assistant templates
	TriggerPayload string
	Device         foscam.DeviceInfo
}

type DeviceDescriptor struct {
	Identifiers  []string `json:"ids"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"mf"`
	Model        string   `json:"mdl,omitempty"`
	HWVersion    string   `json:"hw,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

// EntityConfig is the Home Assistant discovery payload, in abbreviated keys.
type EntityConfig struct {
	UniqueID            string            `json:"uniq_id"`
	ObjectID            string            `json:"obj_id"`
	Name                string            `json:"name"`
	Icon                string            `json:"ic,omitempty"`
	AvailabilityTopic   string            `json:"avty_t"`
	PayloadAvailable    string            `json:"pl_avail"`
	PayloadNotAvailable string            `json:"pl_not_avail"`
	Topic               string            `json:"t,omitempty"`
	StateTopic          string            `json:"stat_t,omitempty"`
	CommandTopic        string            `json:"cmd_t,omitempty"`
	ValueTemplate       string            `json:"val_tpl,omitempty"`
	CommandTemplate     string            `json:"cmd_tpl,omitempty"`
	DeviceClass         string            `json:"dev_cla,omitempty"`
	PayloadOn           string            `json:"pl_on,omitempty"`
	PayloadOff          string            `json:"pl_off,omitempty"`
	PayloadPress        string            `json:"pl_prs,omitempty"`
	Options             []string          `json:"options,omitempty"`
	Min                 *int              `json:"min,omitempty"`
	Max                 *int              `json:"max,omitempty"`
	Step                *int              `json:"step,omitempty"`
	Unit                string            `json:"unit_of_meas,omitempty"`
	AutomationType      string            `json:"atype,omitempty"`
	Payload             string            `json:"pl,omitempty"`
	Type                string            `json:"type,omitempty"`
	Subtype             string            `json:"stype,omitempty"`
	Device              *DeviceDescriptor `json:"dev,omitempty"`
}

type Descriptor struct {
	Component string
	Config    EntityConfig
}

// Topic is the retained config topic Home Assistant listens on.
func (d Descriptor) Topic(discoveryRoot string) string {
	return fmt.Sprintf("%s/%s/%s/config", discoveryRoot, d.Component, d.Config.UniqueID)
}

// Descriptors builds the full entity set for one camera.
func Descriptors(p DiscoveryParams) []Descriptor {
	dev := &DeviceDescriptor{
		Identifiers:  []string{p.TopicRoot},
		Name:         p.DeviceName,
		Manufacturer: manufacturer,
		Model:        p.Device.Model,
		HWVersion:    p.Device.Hardware,
		SWVersion:    p.Device.Firmware,
	}
	if p.Device.ProductName != "" {
		dev.Model = p.Device.ProductName
	}

	topic := func(suffix string) string { return p.TopicRoot + "/" + suffix }
	parseDate := fmt.Sprintf("{{ strptime(value, '%s') }}", p.DateFormat)

	entity := func(component, feature, name, icon string) Descriptor {
		id := p.TopicRoot + "_" + feature
		return Descriptor{
			Component: component,
			Config: EntityConfig{
				UniqueID:            id,
				ObjectID:            id,
				Name:                name,
				Icon:                icon,
				AvailabilityTopic:   topic(StateTopic),
				PayloadAvailable:    "1",
				PayloadNotAvailable: "0",
				Device:              dev,
			},
		}
	}

	var out []Descriptor

	snap := entity("camera", "snapshot", "Snapshot", "mdi:doorbell-video")
	snap.Config.Topic = topic("snapshot")
	out = append(out, snap)

	snapAt := entity("sensor", "snapshot_datetime", "Snapshot time", "mdi:clock-outline")
	snapAt.Config.StateTopic = topic("snapshot/datetime")
	snapAt.Config.ValueTemplate = parseDate
	snapAt.Config.DeviceClass = "timestamp"
	out = append(out, snapAt)

	last := entity("sensor", "action", "Last action", "mdi:gesture-tap-button")
	last.Config.StateTopic = topic("action")
	out = append(out, last)

	for _, def := range models.Actions {
		a := string(def.Action)

		at := entity("sensor", a, "Last "+a, "mdi:clock-outline")
		at.Config.StateTopic = topic(a + "_datetime")
		at.Config.ValueTemplate = parseDate
		at.Config.DeviceClass = "timestamp"
		out = append(out, at)

		trig := entity("device_automation", "trigger_"+a, a, "")
		trig.Config.AutomationType = "trigger"
		trig.Config.Topic = topic(a + "/trigger")
		trig.Config.Payload = p.TriggerPayload
		trig.Config.Type = a
		trig.Config.Subtype = a
		out = append(out, trig)
	}

	switches := []struct{ feature, setting, name, icon string }{
		{"status_led", "status_led", "Status LED", "mdi:led-on"},
		{"image_hdr", "image/hdr", "HDR", "mdi:hdr"},
		{"image_mirror", "image/mirror", "Mirror image", "mdi:flip-horizontal"},
		{"image_flip", "image/flip", "Flip image", "mdi:flip-vertical"},
	}
	for _, s := range switches {
		sw := entity("switch", s.feature, s.name, s.icon)
		sw.Config.StateTopic = topic(s.setting)
		sw.Config.CommandTopic = topic(s.setting + "/set")
		sw.Config.PayloadOn = "1"
		sw.Config.PayloadOff = "0"
		out = append(out, sw)
	}

	night := entity("select", "night_mode", "Night mode", "mdi:weather-night")
	night.Config.StateTopic = topic("night_mode")
	night.Config.CommandTopic = topic("night_mode/set")
	night.Config.Options = []string{nightModeOn, nightModeOff, nightModeAuto}
	out = append(out, night)

	update := entity("button", "update_snapshot", "Update snapshot", "mdi:camera-retake")
	update.Config.CommandTopic = topic("snapshot/update")
	out = append(out, update)

	reboot := entity("button", "reboot", "Reboot", "mdi:restart")
	reboot.Config.CommandTopic = topic("reboot")
	reboot.Config.DeviceClass = "restart"
	out = append(out, reboot)

	lo, hi, step := 0, 100, 10
	vol := entity("number", "ring_volume", "Ring volume", "mdi:volume-high")
	vol.Config.StateTopic = topic("ring_volume")
	vol.Config.CommandTopic = topic("ring_volume/set")
	vol.Config.Min = &lo
	vol.Config.Max = &hi
	vol.Config.Step = &step
	vol.Config.Unit = "%"
	out = append(out, vol)

	return out
}

// PublishDiscovery announces every descriptor as a retained config message.
func (p *Publisher) PublishDiscovery(discoveryRoot string, descs []Descriptor) {
	for _, d := range descs {
		_ = p.publishRaw(d.Topic(discoveryRoot), d.Config, Retained)
	}
	logger.Infof("Published %d Home Assistant discovery entities", len(descs))
}

// ClearDiscovery removes the entities by overwriting their config with empty
// retained payloads.
func (p *Publisher) ClearDiscovery(discoveryRoot string, descs []Descriptor) {
	for _, d := range descs {
		_ = p.publishRaw(d.Topic(discoveryRoot), nil, Retained)
	}
	logger.Infof("Removed %d Home Assistant discovery entities", len(descs))
}
