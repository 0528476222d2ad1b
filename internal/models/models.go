package models

import "time"

// Config defines the user settings
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	Hooks         HooksConfig         `yaml:"hooks"`
	Foscam        FoscamConfig        `yaml:"foscam"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	LogLevel      string              `yaml:"log_level"`
	Quiet         bool                `yaml:"quiet"`
	DateFormat    string              `yaml:"date_format"` // strftime, e.g. "%Y-%m-%dT%H:%M:%SZ"
}

type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	URL     string `yaml:"url"` // advertised to the camera, e.g. "http://10.0.0.2:5555/"
}

type HooksConfig struct {
	Obfuscate      bool          `yaml:"obfuscate"`
	Paranoid       bool          `yaml:"paranoid"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

type FoscamConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	SSL      bool          `yaml:"ssl"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	SSL      bool   `yaml:"ssl"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type HomeAssistantConfig struct {
	Discovery      bool   `yaml:"discovery"`
	DiscoveryTopic string `yaml:"discovery_topic"`
	DeviceName     string `yaml:"device_name"`
	Cleanup        bool   `yaml:"cleanup"`
}

// Action is a canonical camera event type.
type Action string

const (
	ActionButton Action = "button"
	ActionMotion Action = "motion"
	ActionSound  Action = "sound"
	ActionFace   Action = "face"
	ActionHuman  Action = "human"
)

// ActionDef binds an action to the field of the camera's alarm callback
// record that carries its URL.
type ActionDef struct {
	Action Action
	Alias  string
}

// Actions is the routed action table in device order. The camera also has an
// "alarm" input (AlarmUrl) which is deliberately not routed.
var Actions = []ActionDef{
	{Action: ActionButton, Alias: "BKLinkUrl"},
	{Action: ActionMotion, Alias: "MDLinkUrl"},
	{Action: ActionSound, Alias: "SDLinkUrl"},
	{Action: ActionFace, Alias: "FaceLinkUrl"},
	{Action: ActionHuman, Alias: "HumanLinkUrl"},
}

// ParseAction matches name exactly against the action table.
func ParseAction(name string) (Action, bool) {
	for _, def := range Actions {
		if string(def.Action) == name {
			return def.Action, true
		}
	}
	return "", false
}
