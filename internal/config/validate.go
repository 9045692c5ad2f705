package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyHost            = errors.New("controller host cannot be empty")
	ErrInvalidPort          = errors.New("controller port must be between 1 and 65535")
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrInvalidRetries       = errors.New("max_retry_attempts cannot be negative")
	ErrHeartbeatTimeout     = errors.New("heartbeat timeout must exceed controller response timeout")
	ErrManipulatorIDMissing = errors.New("manipulator id cannot be empty")
	ErrManipulatorIDClash   = errors.New("manipulator ids must differ")
	ErrInvalidMaxPoints     = errors.New("max_points must be at least 2")
	ErrInvalidSpeed         = errors.New("speed must be positive")
	ErrInvalidSampleRate    = errors.New("sample_rate must be positive")
	ErrInvalidShaftLength   = errors.New("shaft_length must be positive")
	ErrEmptyListenAddr      = errors.New("telemetry listen address cannot be empty when enabled")
)

// ValidationError wraps a validation error with field context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Controller.Host == "" {
		return &ValidationError{Field: "controller.host", Message: "cannot be empty", Err: ErrEmptyHost}
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		return &ValidationError{
			Field:   "controller.port",
			Value:   fmt.Sprintf("%d", c.Controller.Port),
			Message: "must be between 1 and 65535",
			Err:     ErrInvalidPort,
		}
	}
	for _, d := range []struct {
		field string
		dur   Duration
	}{
		{"controller.connect_timeout", c.Controller.ConnectTimeout},
		{"controller.response_timeout", c.Controller.ResponseTimeout},
		{"controller.retry_delay", c.Controller.RetryDelay},
		{"controller.read_slice", c.Controller.ReadSlice},
		{"heartbeat.interval", c.Heartbeat.Interval},
		{"heartbeat.timeout", c.Heartbeat.Timeout},
	} {
		if d.dur.Duration <= 0 {
			return &ValidationError{
				Field:   d.field,
				Value:   d.dur.String(),
				Message: "must be positive",
				Err:     ErrInvalidTimeout,
			}
		}
	}
	// A silent controller must surface as a missed reply on a live
	// socket, not as a canceled exchange that closes it.
	if c.Heartbeat.Timeout.Duration <= c.Controller.ResponseTimeout.Duration {
		return &ValidationError{
			Field:   "heartbeat.timeout",
			Value:   c.Heartbeat.Timeout.String(),
			Message: "must exceed controller.response_timeout",
			Err:     ErrHeartbeatTimeout,
		}
	}
	if c.Controller.MaxRetryAttempts < 0 {
		return &ValidationError{
			Field:   "controller.max_retry_attempts",
			Value:   fmt.Sprintf("%d", c.Controller.MaxRetryAttempts),
			Message: "cannot be negative",
			Err:     ErrInvalidRetries,
		}
	}
	if c.Manipulators.Left == "" || c.Manipulators.Right == "" {
		return &ValidationError{Field: "manipulators", Message: "both ids are required", Err: ErrManipulatorIDMissing}
	}
	if c.Manipulators.Left == c.Manipulators.Right {
		return &ValidationError{
			Field:   "manipulators",
			Value:   c.Manipulators.Left,
			Message: "left and right must differ",
			Err:     ErrManipulatorIDClash,
		}
	}
	if c.Trajectory.MaxPoints < 2 {
		return &ValidationError{
			Field:   "trajectory.max_points",
			Value:   fmt.Sprintf("%d", c.Trajectory.MaxPoints),
			Message: "must be at least 2",
			Err:     ErrInvalidMaxPoints,
		}
	}
	if c.Trajectory.Speed <= 0 {
		return &ValidationError{
			Field:   "trajectory.speed",
			Value:   fmt.Sprintf("%g", c.Trajectory.Speed),
			Message: "must be positive",
			Err:     ErrInvalidSpeed,
		}
	}
	if c.Trajectory.SampleRate <= 0 {
		return &ValidationError{
			Field:   "trajectory.sample_rate",
			Value:   fmt.Sprintf("%g", c.Trajectory.SampleRate),
			Message: "must be positive",
			Err:     ErrInvalidSampleRate,
		}
	}
	if c.Kinematics.ShaftLength <= 0 {
		return &ValidationError{
			Field:   "kinematics.shaft_length",
			Value:   fmt.Sprintf("%g", c.Kinematics.ShaftLength),
			Message: "must be positive",
			Err:     ErrInvalidShaftLength,
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.Listen == "" {
		return &ValidationError{Field: "telemetry.listen", Message: "cannot be empty when enabled", Err: ErrEmptyListenAddr}
	}
	return nil
}
