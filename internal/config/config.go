// Package config provides configuration loading and validation for maniplink.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/paths"
)

// Duration wraps time.Duration so TOML values can be written as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the full maniplink configuration.
type Config struct {
	Controller   ControllerConfig   `toml:"controller"`
	Manipulators ManipulatorsConfig `toml:"manipulators"`
	Heartbeat    HeartbeatConfig    `toml:"heartbeat"`
	Trajectory   TrajectoryConfig   `toml:"trajectory"`
	Kinematics   KinematicsConfig   `toml:"kinematics"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
	Log          LogConfig          `toml:"log"`
}

// ControllerConfig describes the TCP endpoint and channel timing.
type ControllerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout Duration `toml:"connect_timeout"`
	// ResponseTimeout bounds the wait for a sync command reply.
	ResponseTimeout Duration `toml:"response_timeout"`
	// MaxRetryAttempts is how many extra dials follow a failed connect.
	MaxRetryAttempts int `toml:"max_retry_attempts"`
	// RetryDelay is the fixed pause between dial attempts.
	RetryDelay Duration `toml:"retry_delay"`
	// ReadSlice is the listener's per-iteration read deadline. It bounds
	// how long the listener holds the channel gate in one pass.
	ReadSlice Duration `toml:"read_slice"`
}

// Addr returns the controller endpoint in host:port form.
func (c ControllerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ManipulatorsConfig names the two device units and their park positions.
type ManipulatorsConfig struct {
	Left  string `toml:"left"`
	Right string `toml:"right"`

	// Carriage home positions in millimetres.
	HomeLeft  [3]float64 `toml:"home_left"`
	HomeRight [3]float64 `toml:"home_right"`
}

// HomeLeftVec returns the left home position as a vector.
func (m ManipulatorsConfig) HomeLeftVec() r3.Vector {
	return r3.Vector{X: m.HomeLeft[0], Y: m.HomeLeft[1], Z: m.HomeLeft[2]}
}

// HomeRightVec returns the right home position as a vector.
func (m ManipulatorsConfig) HomeRightVec() r3.Vector {
	return r3.Vector{X: m.HomeRight[0], Y: m.HomeRight[1], Z: m.HomeRight[2]}
}

// HeartbeatConfig controls periodic liveness probing. Timeout must
// exceed the controller response timeout, or a silent controller reads
// as a dead transport instead of a missed reply.
type HeartbeatConfig struct {
	Interval Duration `toml:"interval"`
	Timeout  Duration `toml:"timeout"`
}

// TrajectoryConfig controls planning and downsampling.
type TrajectoryConfig struct {
	// MaxPoints caps how many samples a PATH_DATA upload carries.
	MaxPoints int `toml:"max_points"`
	// Speed is the tool speed along the pose path in mm/s.
	Speed float64 `toml:"speed"`
	// SampleRate is the dense sampling frequency in Hz before the
	// solver runs.
	SampleRate float64 `toml:"sample_rate"`
}

// KinematicsConfig describes the rig geometry for the built-in solver.
type KinematicsConfig struct {
	// ShaftLength is the tool shaft length in millimetres.
	ShaftLength float64 `toml:"shaft_length"`
	// Pivot points (remote centers) in millimetres.
	RCMLeft  [3]float64 `toml:"rcm_left"`
	RCMRight [3]float64 `toml:"rcm_right"`
}

// RCMLeftVec returns the left pivot as a vector.
func (k KinematicsConfig) RCMLeftVec() r3.Vector {
	return r3.Vector{X: k.RCMLeft[0], Y: k.RCMLeft[1], Z: k.RCMLeft[2]}
}

// RCMRightVec returns the right pivot as a vector.
func (k KinematicsConfig) RCMRightVec() r3.Vector {
	return r3.Vector{X: k.RCMRight[0], Y: k.RCMRight[1], Z: k.RCMRight[2]}
}

// TelemetryConfig controls the HTTP bridge server.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `toml:"level"`
	// File overrides the default log path when non-empty.
	File string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Controller: ControllerConfig{
			Host:             "127.0.0.1",
			Port:             4001,
			ConnectTimeout:   Duration{5 * time.Second},
			ResponseTimeout:  Duration{2 * time.Second},
			MaxRetryAttempts: 3,
			RetryDelay:       Duration{1 * time.Second},
			ReadSlice:        Duration{50 * time.Millisecond},
		},
		Manipulators: ManipulatorsConfig{
			Left:      "1",
			Right:     "2",
			HomeLeft:  [3]float64{-5, 0, 45},
			HomeRight: [3]float64{5, 0, 45},
		},
		Heartbeat: HeartbeatConfig{
			Interval: Duration{5 * time.Second},
			Timeout:  Duration{3 * time.Second},
		},
		Trajectory: TrajectoryConfig{
			MaxPoints:  100,
			Speed:      2.0,
			SampleRate: 50.0,
		},
		Kinematics: KinematicsConfig{
			ShaftLength: 50.0,
			RCMLeft:     [3]float64{-25, 0, 30},
			RCMRight:    [3]float64{25, 0, 30},
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8632",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the built-in defaults; a present file is
// decoded over them, so partial files inherit defaults for omitted keys.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = paths.ConfigPath()
		if err != nil {
			return cfg, err
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	return cfg, nil
}
