package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, "127.0.0.1:4001", cfg.Controller.Addr())
	require.Equal(t, 2*time.Second, cfg.Controller.ResponseTimeout.Duration)
	require.Equal(t, 3, cfg.Controller.MaxRetryAttempts)
	require.Equal(t, time.Second, cfg.Controller.RetryDelay.Duration)
	require.Equal(t, 3*time.Second, cfg.Heartbeat.Timeout.Duration)
	require.Equal(t, 100, cfg.Trajectory.MaxPoints)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileInheritsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maniplink.toml")
	content := `
[controller]
host = "10.0.0.5"
port = 4100
response_timeout = "750ms"

[manipulators]
left = "A"
right = "B"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "10.0.0.5:4100", cfg.Controller.Addr())
	require.Equal(t, 750*time.Millisecond, cfg.Controller.ResponseTimeout.Duration)
	require.Equal(t, "A", cfg.Manipulators.Left)
	require.Equal(t, "B", cfg.Manipulators.Right)

	// Unspecified keys keep their defaults.
	require.Equal(t, 5*time.Second, cfg.Controller.ConnectTimeout.Duration)
	require.Equal(t, 100, cfg.Trajectory.MaxPoints)
	require.Equal(t, 50.0, cfg.Kinematics.ShaftLength)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maniplink.toml")
	content := `
[controller]
connect_timeout = "not a duration"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_HomePositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maniplink.toml")
	content := `
[manipulators]
left = "1"
right = "2"
home_left = [1.0, 2.0, 3.0]
home_right = [-1.0, -2.0, -3.0]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	left := cfg.Manipulators.HomeLeftVec()
	require.Equal(t, 1.0, left.X)
	require.Equal(t, 2.0, left.Y)
	require.Equal(t, 3.0, left.Z)

	right := cfg.Manipulators.HomeRightVec()
	require.Equal(t, -1.0, right.X)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty host", func(c *Config) { c.Controller.Host = "" }, ErrEmptyHost},
		{"zero port", func(c *Config) { c.Controller.Port = 0 }, ErrInvalidPort},
		{"huge port", func(c *Config) { c.Controller.Port = 70000 }, ErrInvalidPort},
		{"zero response timeout", func(c *Config) { c.Controller.ResponseTimeout = Duration{} }, ErrInvalidTimeout},
		{"zero heartbeat interval", func(c *Config) { c.Heartbeat.Interval = Duration{} }, ErrInvalidTimeout},
		{"heartbeat timeout under response timeout", func(c *Config) {
			c.Heartbeat.Timeout = c.Controller.ResponseTimeout
		}, ErrHeartbeatTimeout},
		{"negative retries", func(c *Config) { c.Controller.MaxRetryAttempts = -1 }, ErrInvalidRetries},
		{"missing manipulator id", func(c *Config) { c.Manipulators.Left = "" }, ErrManipulatorIDMissing},
		{"clashing manipulator ids", func(c *Config) { c.Manipulators.Right = c.Manipulators.Left }, ErrManipulatorIDClash},
		{"max_points too small", func(c *Config) { c.Trajectory.MaxPoints = 1 }, ErrInvalidMaxPoints},
		{"zero speed", func(c *Config) { c.Trajectory.Speed = 0 }, ErrInvalidSpeed},
		{"zero sample rate", func(c *Config) { c.Trajectory.SampleRate = 0 }, ErrInvalidSampleRate},
		{"zero shaft", func(c *Config) { c.Kinematics.ShaftLength = 0 }, ErrInvalidShaftLength},
		{"telemetry enabled without addr", func(c *Config) { c.Telemetry.Listen = "" }, ErrEmptyListenAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Field)
		})
	}
}

func TestValidate_ZeroRetriesAllowed(t *testing.T) {
	cfg := Default()
	cfg.Controller.MaxRetryAttempts = 0

	require.NoError(t, cfg.Validate())
}
