package kinematics

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

// Solver errors.
var (
	// ErrAtPivot means a point coincides with the pivot, leaving the
	// shaft direction undefined.
	ErrAtPivot = errors.New("kinematics: point at pivot")
	// ErrUnreachable means the pose lies outside the shaft's reach.
	ErrUnreachable = errors.New("kinematics: pose unreachable")
	// ErrSeriesMismatch means the pose path and timestamp series differ
	// in length.
	ErrSeriesMismatch = errors.New("kinematics: pose and time series lengths differ")
)

// RCM is a remote-center-of-motion solver for a rig whose tool shafts pass
// through fixed pivot points. Each manipulator carries a straight shaft of
// length Shaft from its carriage; the shaft is constrained to pass through
// the pivot, so the tip always lies on the carriage-pivot line beyond the
// pivot.
type RCM struct {
	Shaft      float64
	PivotLeft  r3.Vector
	PivotRight r3.Vector
}

// NewRCM builds a solver for the given shaft length and pivot points, all
// in millimetres.
func NewRCM(shaft float64, pivotLeft, pivotRight r3.Vector) *RCM {
	return &RCM{Shaft: shaft, PivotLeft: pivotLeft, PivotRight: pivotRight}
}

// tipEpsilon guards against degenerate geometry near the pivot.
const tipEpsilon = 1e-9

// Forward maps carriage positions to tool tips.
func (s *RCM) Forward(joints JointVector) (Pose, error) {
	left, err := s.tipFor(joints.Left, s.PivotLeft)
	if err != nil {
		return Pose{}, fmt.Errorf("left manipulator: %w", err)
	}
	right, err := s.tipFor(joints.Right, s.PivotRight)
	if err != nil {
		return Pose{}, fmt.Errorf("right manipulator: %w", err)
	}
	return Pose{Left: left, Right: right}, nil
}

// tipFor places the tip on the carriage-pivot ray at shaft length.
func (s *RCM) tipFor(carriage, pivot r3.Vector) (r3.Vector, error) {
	d := pivot.Sub(carriage)
	r := d.Norm()
	if r < tipEpsilon {
		return r3.Vector{}, ErrAtPivot
	}
	if r >= s.Shaft {
		return r3.Vector{}, fmt.Errorf("%w: carriage %.3f mm from pivot exceeds shaft %.3f mm", ErrUnreachable, r, s.Shaft)
	}
	return carriage.Add(d.Mul(s.Shaft / r)), nil
}

// carriageFor inverts tipFor: the carriage sits on the tip-pivot line,
// extended past the pivot so the full shaft length spans carriage to tip.
func (s *RCM) carriageFor(tip, pivot r3.Vector) (r3.Vector, error) {
	d := pivot.Sub(tip)
	r := d.Norm()
	if r < tipEpsilon {
		return r3.Vector{}, ErrAtPivot
	}
	if r >= s.Shaft {
		return r3.Vector{}, fmt.Errorf("%w: tip %.3f mm from pivot exceeds shaft %.3f mm", ErrUnreachable, r, s.Shaft)
	}
	return pivot.Add(d.Mul((s.Shaft - r) / r)), nil
}

// Inverse maps a pose path to the joint series that traces it.
func (s *RCM) Inverse(path []Pose, times []float64) (JointSeries, error) {
	if len(times) != len(path) {
		return JointSeries{}, ErrSeriesMismatch
	}

	series := JointSeries{
		Points: make([]JointVector, len(path)),
		Times:  make([]float64, len(path)),
	}
	for i, pose := range path {
		left, err := s.carriageFor(pose.Left, s.PivotLeft)
		if err != nil {
			return JointSeries{}, fmt.Errorf("pose %d, left manipulator: %w", i, err)
		}
		right, err := s.carriageFor(pose.Right, s.PivotRight)
		if err != nil {
			return JointSeries{}, fmt.Errorf("pose %d, right manipulator: %w", i, err)
		}
		series.Points[i] = JointVector{Left: left, Right: right}
		series.Times[i] = times[i]
	}
	if n := len(times); n > 0 {
		series.Elapsed = times[n-1]
	}
	return series, nil
}
