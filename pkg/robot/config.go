package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared between host and client, matching the piper host protocol.
const (
	DefaultPortCmd          = 5555
	DefaultPortObservations = 5556
	DefaultConnectTimeout   = 5 * time.Second
	DefaultPollTimeout      = 15 * time.Millisecond
	DefaultCalibrationDir   = "calibration"
)

// Config is the flat robot descriptor assembled from command-line flags.
// Which fields matter depends on Type.
type Config struct {
	// Type selects the robot implementation: so101_follower, piper,
	// bimanual_piper_follower, piper_client, bimanual_piper_client.
	Type string
	// Port is the device port: a serial port for SO-101 arms, a CAN channel
	// for piper arms.
	Port string
	// ID names this robot. It doubles as the calibration file base name for
	// SO-101 arms.
	ID string

	// Calibration, when set, takes precedence over CalibrationDir/ID.
	Calibration    Calibration
	CalibrationDir string

	// Cameras parsed from the --robot.cameras mapping literal.
	Cameras map[string]CameraConfig

	// Bimanual follower ports.
	LeftPort  string
	RightPort string

	// Remote client settings.
	RemoteIP         string
	PortCmd          int
	PortObservations int
	ConnectTimeout   time.Duration
	PollTimeout      time.Duration
}

// CmdPort returns the command port, defaulted.
func (c Config) CmdPort() int {
	if c.PortCmd == 0 {
		return DefaultPortCmd
	}
	return c.PortCmd
}

// ObservationsPort returns the observation port, defaulted.
func (c Config) ObservationsPort() int {
	if c.PortObservations == 0 {
		return DefaultPortObservations
	}
	return c.PortObservations
}

// CameraConfig mirrors one entry of the cameras mapping literal, e.g.
// { front: {type: opencv, index_or_path: 0, width: 1920, height: 1080, fps: 30}}.
type CameraConfig struct {
	Type        string `yaml:"type"`
	IndexOrPath any    `yaml:"index_or_path"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
}

// ParseCameras parses the cameras mapping literal passed on the command
// line. The literal is a YAML flow mapping; an empty string or "{}" yields
// an empty map.
func ParseCameras(s string) (map[string]CameraConfig, error) {
	if s == "" {
		return map[string]CameraConfig{}, nil
	}
	cams := map[string]CameraConfig{}
	if err := yaml.Unmarshal([]byte(s), &cams); err != nil {
		return nil, fmt.Errorf("parse cameras mapping: %w", err)
	}
	return cams, nil
}

const DefaultConfigFile = "piperlink.json"

// SetupConfig is the saved configuration of a local leader/follower pair of
// SO-101 arms, written by `piperlink setup`.
type SetupConfig struct {
	Leader   ArmConfig `json:"leader"`
	Follower ArmConfig `json:"follower"`
}

// ArmConfig holds configuration for a single SO-101 arm.
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data.
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// LoadSetup loads the saved pair configuration from the default config file.
func LoadSetup() (*SetupConfig, error) {
	return LoadSetupFrom(DefaultConfigFile)
}

// LoadSetupFrom loads the saved pair configuration from a specific file.
func LoadSetupFrom(path string) (*SetupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg SetupConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves the pair configuration to the default config file.
func (c *SetupConfig) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves the pair configuration to a specific file.
func (c *SetupConfig) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetupExists returns true if the default config file exists.
func SetupExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
