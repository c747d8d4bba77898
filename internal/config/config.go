package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the controller and its operator CLI.
type Config struct {
	// ListenAddress is where the HTTP status page is served.
	ListenAddress string `yaml:"listen_address"`
	// ControlAddress is the gRPC control API address.
	ControlAddress string `yaml:"control_address"`
	// MetricsAddress exposes Prometheus metrics when not empty.
	MetricsAddress string `yaml:"metrics_address"`
	// SessionTimeout bounds how long one connection may take.
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Hardware describes how the probe and indicators are wired.
	Hardware Hardware `yaml:"hardware"`
	// MQTT configures the alert notifier. Disabled when Broker is empty.
	MQTT MQTT `yaml:"mqtt"`
}

// Hardware describes the board driver and its wiring.
type Hardware struct {
	// Driver selects the board implementation: gpio or simulated.
	Driver string `yaml:"driver"`
	// VisualPin is the BCM pin of the alert LED.
	VisualPin uint8 `yaml:"visual_pin"`
	// AudiblePin is the BCM pin of the buzzer.
	AudiblePin uint8 `yaml:"audible_pin"`
	// ADCChannel is the MCP3208 input the probe is wired to.
	ADCChannel uint8 `yaml:"adc_channel"`
	// SimulatedRaw is the initial sample of the simulated driver.
	SimulatedRaw uint16 `yaml:"simulated_raw"`
}

// MQTT holds the broker connection used to publish alert transitions.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

const (
	// DefaultConfigFilename is the default filename for controller settings.
	DefaultConfigFilename = "agrosmart-settings.yaml"

	// DefaultListenAddress serves the status page on plain HTTP.
	DefaultListenAddress = ":80"

	// DefaultControlAddress is the default gRPC control API address.
	DefaultControlAddress = ":50051"

	// DefaultSessionTimeout bounds a single status page exchange.
	DefaultSessionTimeout = 5 * time.Second

	// DefaultTimeout is the default duration for control API calls.
	DefaultTimeout = 5 * time.Second

	// DefaultMQTTTopic is where alert transitions are published.
	DefaultMQTTTopic = "agrosmart/alert"

	// DefaultMQTTClientID identifies the controller on the broker.
	DefaultMQTTClientID = "agrosmart"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

const (
	// DriverGPIO drives a Raspberry Pi through /dev/gpiomem and SPI.
	DriverGPIO = "gpio"
	// DriverSimulated keeps the board in memory.
	DriverSimulated = "simulated"

	// DefaultVisualPin is the BCM pin of the red alert LED.
	DefaultVisualPin = 13
	// DefaultAudiblePin is the BCM pin of the buzzer.
	DefaultAudiblePin = 15

	// maxADCChannel is the last single-ended input of an MCP3208.
	maxADCChannel = 7
	// maxSimulatedRaw matches the 12-bit converter range.
	maxSimulatedRaw = 4095
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrUnknownDriver is returned for an unsupported hardware driver.
	ErrUnknownDriver = errors.New("unknown hardware driver")
	// errSamePins is returned when both indicators share one pin.
	errSamePins = errors.New("visual and audible pins must differ")
	// errADCChannel is returned for an MCP3208 channel out of range.
	errADCChannel = errors.New("adc channel out of range")
	// errSimulatedRaw is returned for a simulated sample above full scale.
	errSimulatedRaw = errors.New("simulated raw sample out of range")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks addresses, wiring and broker URL.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ListenAddress == "" {
		settings.ListenAddress = DefaultListenAddress
	}

	if settings.ControlAddress == "" {
		settings.ControlAddress = DefaultControlAddress
	}

	if settings.SessionTimeout <= 0 {
		settings.SessionTimeout = DefaultSessionTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if err := validateAddress("listen", settings.ListenAddress); err != nil {
		return err
	}

	if err := validateAddress("control", settings.ControlAddress); err != nil {
		return err
	}

	if settings.MetricsAddress != "" {
		if err := validateAddress("metrics", settings.MetricsAddress); err != nil {
			return err
		}
	}

	if err := validateHardware(&settings.Hardware); err != nil {
		return err
	}

	return validateMQTT(&settings.MQTT)
}

// validateAddress checks that address is a resolvable TCP socket.
func validateAddress(name, address string) error {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return fmt.Errorf("invalid %s address: %w", name, err)
	}

	return nil
}

// validateHardware fills wiring defaults and rejects impossible wiring.
func validateHardware(hw *Hardware) error {
	if hw.Driver == "" {
		hw.Driver = DriverGPIO
	}

	if hw.Driver != DriverGPIO && hw.Driver != DriverSimulated {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, hw.Driver)
	}

	if hw.VisualPin == 0 {
		hw.VisualPin = DefaultVisualPin
	}

	if hw.AudiblePin == 0 {
		hw.AudiblePin = DefaultAudiblePin
	}

	if hw.VisualPin == hw.AudiblePin {
		return errSamePins
	}

	if hw.ADCChannel > maxADCChannel {
		return fmt.Errorf("%w: %d", errADCChannel, hw.ADCChannel)
	}

	if hw.SimulatedRaw > maxSimulatedRaw {
		return fmt.Errorf("%w: %d", errSimulatedRaw, hw.SimulatedRaw)
	}

	return nil
}

// validateMQTT fills notifier defaults when a broker is configured.
func validateMQTT(m *MQTT) error {
	if m.Broker == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(m.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker URI: %w", err)
	}

	if m.Topic == "" {
		m.Topic = DefaultMQTTTopic
	}

	if m.ClientID == "" {
		m.ClientID = DefaultMQTTClientID
	}

	return nil
}
