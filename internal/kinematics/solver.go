// Package kinematics defines the solver boundary between the control engine
// and the rig geometry.
//
// The engine treats solvers as black boxes: poses go in, joint positions
// come out, and any solver error aborts planning. All values are in
// millimetres.
package kinematics

import "github.com/golang/geo/r3"

// Pose is a pair of tool tip targets, one per manipulator.
type Pose struct {
	Left  r3.Vector
	Right r3.Vector
}

// JointVector is a pair of carriage positions, one per manipulator. These
// are the values the controller reports and accepts on the wire.
type JointVector struct {
	Left  r3.Vector
	Right r3.Vector
}

// JointSeries is a sampled joint trajectory.
type JointSeries struct {
	// Points holds one joint vector per sample.
	Points []JointVector
	// Times holds the matching timestamps in seconds from start.
	Times []float64
	// Elapsed is the solver's duration estimate in seconds.
	Elapsed float64
}

// Solver converts between tool poses and joint positions.
type Solver interface {
	// Forward maps carriage positions to the resulting tool pose.
	Forward(joints JointVector) (Pose, error)
	// Inverse maps a pose path with timestamps to a joint series. The
	// returned series has one entry per input pose.
	Inverse(path []Pose, times []float64) (JointSeries, error)
}
