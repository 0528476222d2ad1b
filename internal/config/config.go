package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"foscam2mqtt/internal/models"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDateFormat     = "%Y-%m-%dT%H:%M:%SZ"
	DefaultDeviceTimeout  = 15 * time.Second
	DefaultResyncInterval = 60 * time.Second
)

// LoadConfig reads the configuration from a file. An empty path yields the
// defaults only.
func LoadConfig(path string) (*models.Config, error) {
	var cfg models.Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = "0.0.0.0"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 5555
	}
	if cfg.Hooks.ResyncInterval == 0 {
		cfg.Hooks.ResyncInterval = DefaultResyncInterval
	}
	if cfg.Foscam.Port == 0 {
		cfg.Foscam.Port = 88
	}
	if cfg.Foscam.User == "" {
		cfg.Foscam.User = "admin"
	}
	if cfg.Foscam.Timeout == 0 {
		cfg.Foscam.Timeout = DefaultDeviceTimeout
	}
	if cfg.MQTT.Host == "" {
		cfg.MQTT.Host = "localhost"
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "foscam2mqtt"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "foscam2mqtt"
	}
	if cfg.HomeAssistant.DiscoveryTopic == "" {
		cfg.HomeAssistant.DiscoveryTopic = "homeassistant"
	}
	if cfg.HomeAssistant.DeviceName == "" {
		cfg.HomeAssistant.DeviceName = "Foscam VD1"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warning"
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultDateFormat
	}
}

// Validate reports the settings the bridge cannot start without.
func Validate(cfg *models.Config) error {
	var errs []error
	if cfg.Listen.URL == "" {
		errs = append(errs, errors.New("listen url is required (--listen-url)"))
	} else if !strings.HasPrefix(cfg.Listen.URL, "http://") && !strings.HasPrefix(cfg.Listen.URL, "https://") {
		errs = append(errs, fmt.Errorf("listen url %q must start with http:// or https://", cfg.Listen.URL))
	}
	if cfg.Foscam.Host == "" {
		errs = append(errs, errors.New("foscam host is required (--foscam-host)"))
	}
	if cfg.MQTT.Host == "" {
		errs = append(errs, errors.New("mqtt host is required (--mqtt-host)"))
	}
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen port %d out of range", cfg.Listen.Port))
	}
	return errors.Join(errs...)
}

// Flags holds the command line overrides. Only flags that were set on the
// command line replace file values.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath string

	listenAddress string
	listenPort    int
	listenURL     string
	obfuscate     bool
	paranoid      bool

	foscamHost string
	foscamPort int
	foscamSSL  bool
	foscamUser string
	foscamPass string

	mqttHost     string
	mqttPort     int
	mqttSSL      bool
	mqttUser     string
	mqttPass     string
	mqttTopic    string
	mqttClientID string

	haDiscovery      bool
	haDiscoveryTopic string
	haDeviceName     string
	haCleanup        bool

	quiet      bool
	logLevel   string
	dateFormat string
}

func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to YAML configuration file")

	fs.StringVar(&f.listenAddress, "listen-address", "0.0.0.0", "Listening address")
	fs.IntVar(&f.listenPort, "listen-port", 5555, "Listening port")
	fs.StringVar(&f.listenURL, "listen-url", "", "URL we should advertise to the Foscam device")
	fs.BoolVar(&f.obfuscate, "obfuscate", false, "Obfuscate webhook actions")
	fs.BoolVar(&f.paranoid, "paranoid", false, "Cycle obfuscated webhook action after each trigger")

	fs.StringVar(&f.foscamHost, "foscam-host", "", "Foscam IP/hostname to connect to for auto-configuration of webhooks")
	fs.IntVar(&f.foscamPort, "foscam-port", 88, "Foscam port to connect to")
	fs.BoolVar(&f.foscamSSL, "foscam-ssl", false, "Enable SSL on the Foscam connection")
	fs.StringVar(&f.foscamUser, "foscam-user", "admin", "Username for the Foscam device")
	fs.StringVar(&f.foscamPass, "foscam-pass", "", "Password for the Foscam device")

	fs.StringVar(&f.mqttHost, "mqtt-host", "localhost", "MQTT server to connect to")
	fs.IntVar(&f.mqttPort, "mqtt-port", 1883, "MQTT TCP port to connect to")
	fs.BoolVar(&f.mqttSSL, "mqtt-ssl", false, "Enable SSL on the MQTT connection")
	fs.StringVar(&f.mqttUser, "mqtt-user", "", "MQTT username")
	fs.StringVar(&f.mqttPass, "mqtt-pass", "", "MQTT password (only used when username is specified)")
	fs.StringVar(&f.mqttTopic, "mqtt-topic", "foscam2mqtt", "MQTT topic to publish to")
	fs.StringVar(&f.mqttClientID, "mqtt-client-id", "foscam2mqtt", "MQTT client ID")

	fs.BoolVar(&f.haDiscovery, "ha-discovery", false, "Publish Home Assistant discovery information")
	fs.StringVar(&f.haDiscoveryTopic, "ha-discovery-topic", "homeassistant", "Home Assistant discovery topic")
	fs.StringVar(&f.haDeviceName, "ha-device-name", "Foscam VD1", "Friendly name of the device in Home Assistant")
	fs.BoolVar(&f.haCleanup, "ha-cleanup", false, "Remove Home Assistant discovery config on exit")

	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Only show error messages")
	fs.StringVar(&f.logLevel, "log-level", "warning", "Log level (debug, info, warning, error)")
	fs.StringVar(&f.dateFormat, "date-format", DefaultDateFormat, "Date/time format for published timestamps (strftime)")
	return f
}

// Apply copies every flag that was explicitly set onto cfg.
func (f *Flags) Apply(cfg *models.Config) {
	set := func(name string, apply func()) {
		if f.fs.Changed(name) {
			apply()
		}
	}

	set("listen-address", func() { cfg.Listen.Address = f.listenAddress })
	set("listen-port", func() { cfg.Listen.Port = f.listenPort })
	set("listen-url", func() { cfg.Listen.URL = f.listenURL })
	set("obfuscate", func() { cfg.Hooks.Obfuscate = f.obfuscate })
	set("paranoid", func() { cfg.Hooks.Paranoid = f.paranoid })

	set("foscam-host", func() { cfg.Foscam.Host = f.foscamHost })
	set("foscam-port", func() { cfg.Foscam.Port = f.foscamPort })
	set("foscam-ssl", func() { cfg.Foscam.SSL = f.foscamSSL })
	set("foscam-user", func() { cfg.Foscam.User = f.foscamUser })
	set("foscam-pass", func() { cfg.Foscam.Password = f.foscamPass })

	set("mqtt-host", func() { cfg.MQTT.Host = f.mqttHost })
	set("mqtt-port", func() { cfg.MQTT.Port = f.mqttPort })
	set("mqtt-ssl", func() { cfg.MQTT.SSL = f.mqttSSL })
	set("mqtt-user", func() { cfg.MQTT.User = f.mqttUser })
	set("mqtt-pass", func() { cfg.MQTT.Password = f.mqttPass })
	set("mqtt-topic", func() { cfg.MQTT.Topic = f.mqttTopic })
	set("mqtt-client-id", func() { cfg.MQTT.ClientID = f.mqttClientID })

	set("ha-discovery", func() { cfg.HomeAssistant.Discovery = f.haDiscovery })
	set("ha-discovery-topic", func() { cfg.HomeAssistant.DiscoveryTopic = f.haDiscoveryTopic })
	set("ha-device-name", func() { cfg.HomeAssistant.DeviceName = f.haDeviceName })
	set("ha-cleanup", func() { cfg.HomeAssistant.Cleanup = f.haCleanup })

	set("quiet", func() { cfg.Quiet = f.quiet })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("date-format", func() { cfg.DateFormat = f.dateFormat })
}
