package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the voicebot client.
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Device     DeviceConfig     `yaml:"device"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Bridge     BridgeConfig     `yaml:"bridge"`
}

// ClassifierConfig configures the remote classification service.
type ClassifierConfig struct {
	// PrimaryURL serves the primary language, SharedURL everything else.
	PrimaryURL string `yaml:"primary_url"`
	SharedURL  string `yaml:"shared_url"`
	Language   string `yaml:"language"`
	BudgetSecs int    `yaml:"budget_secs"`
}

// DeviceConfig configures the command channel to the robot.
type DeviceConfig struct {
	Port        int `yaml:"port"`
	TimeoutSecs int `yaml:"timeout_secs"`
}

// DiscoveryConfig configures the LAN sweep for the robot.
type DiscoveryConfig struct {
	Port             int `yaml:"port"`
	ProbeTimeoutSecs int `yaml:"probe_timeout_secs"`
	MaxConcurrent    int `yaml:"max_concurrent"`
}

// RecorderConfig configures microphone capture.
type RecorderConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	BufferSize int    `yaml:"buffer_size"`
	OutputDir  string `yaml:"output_dir"`
}

// BridgeConfig configures the optional HTTP-to-serial bridge daemon.
type BridgeConfig struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
	ListenPort int    `yaml:"listen_port"`
}

// Default returns a config with every field set to its default value.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			PrimaryURL: "https://voicebot-commands-en.hf.space",
			SharedURL:  "https://voicebot-commands-multi.hf.space",
			Language:   "en",
			BudgetSecs: 60,
		},
		Device: DeviceConfig{
			Port:        80,
			TimeoutSecs: 5,
		},
		Discovery: DiscoveryConfig{
			Port:             80,
			ProbeTimeoutSecs: 2,
			MaxConcurrent:    64,
		},
		Recorder: RecorderConfig{
			SampleRate: 16000,
			BufferSize: 8196,
			OutputDir:  ".",
		},
		Bridge: BridgeConfig{
			SerialPort: "/dev/ttyUSB0",
			BaudRate:   9600,
			ListenPort: 5000,
		},
	}
}

// LoadConfig reads a YAML config file, filling in defaults for any
// field left unset.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Classifier.PrimaryURL == "" {
		cfg.Classifier.PrimaryURL = def.Classifier.PrimaryURL
	}
	if cfg.Classifier.SharedURL == "" {
		cfg.Classifier.SharedURL = def.Classifier.SharedURL
	}
	if cfg.Classifier.Language == "" {
		cfg.Classifier.Language = def.Classifier.Language
	}
	if cfg.Classifier.BudgetSecs <= 0 {
		cfg.Classifier.BudgetSecs = def.Classifier.BudgetSecs
	}
	if cfg.Device.Port <= 0 {
		cfg.Device.Port = def.Device.Port
	}
	if cfg.Device.TimeoutSecs <= 0 {
		cfg.Device.TimeoutSecs = def.Device.TimeoutSecs
	}
	if cfg.Discovery.Port <= 0 {
		cfg.Discovery.Port = def.Discovery.Port
	}
	if cfg.Discovery.ProbeTimeoutSecs <= 0 {
		cfg.Discovery.ProbeTimeoutSecs = def.Discovery.ProbeTimeoutSecs
	}
	if cfg.Discovery.MaxConcurrent <= 0 {
		cfg.Discovery.MaxConcurrent = def.Discovery.MaxConcurrent
	}
	if cfg.Recorder.SampleRate <= 0 {
		cfg.Recorder.SampleRate = def.Recorder.SampleRate
	}
	if cfg.Recorder.BufferSize <= 0 {
		cfg.Recorder.BufferSize = def.Recorder.BufferSize
	}
	if cfg.Recorder.OutputDir == "" {
		cfg.Recorder.OutputDir = def.Recorder.OutputDir
	}
	if cfg.Bridge.SerialPort == "" {
		cfg.Bridge.SerialPort = def.Bridge.SerialPort
	}
	if cfg.Bridge.BaudRate <= 0 {
		cfg.Bridge.BaudRate = def.Bridge.BaudRate
	}
	if cfg.Bridge.ListenPort <= 0 {
		cfg.Bridge.ListenPort = def.Bridge.ListenPort
	}
}

// ClassificationBudget returns the wall-clock budget for one
// classification attempt.
func (c *ClassifierConfig) ClassificationBudget() time.Duration {
	return time.Duration(c.BudgetSecs) * time.Second
}
