package trajectory

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/kinematics"
)

// Plan is a downsampled joint-space trajectory ready for upload. Points
// and Times share indices; Elapsed is the estimated duration in seconds.
type Plan struct {
	ID      string
	Points  []kinematics.JointVector
	Times   []float64
	Elapsed float64

	ready bool
}

// Ready reports whether the plan can still be uploaded.
func (p Plan) Ready() bool { return p.ready }

func lerp(a, b r3.Vector, t float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(t))
}

// samplePath densely samples a straight pose path from one pose to the
// next. Both tools travel together, so the duration follows the longer of
// the two tip moves at the configured speed (mm/s), sampled at rate (Hz).
func samplePath(from, to kinematics.Pose, speed, rate float64) ([]kinematics.Pose, []float64) {
	dist := math.Max(to.Left.Sub(from.Left).Norm(), to.Right.Sub(from.Right).Norm())
	duration := dist / speed

	n := int(math.Ceil(duration*rate)) + 1
	if n < 2 {
		n = 2
	}

	poses := make([]kinematics.Pose, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		poses[i] = kinematics.Pose{
			Left:  lerp(from.Left, to.Left, t),
			Right: lerp(from.Right, to.Right, t),
		}
		times[i] = duration * t
	}
	return poses, times
}

// sampleRoute samples a piecewise-linear path through every pose in route,
// dropping the duplicated sample at each segment boundary.
func sampleRoute(route []kinematics.Pose, speed, rate float64) ([]kinematics.Pose, []float64) {
	poses := []kinematics.Pose{route[0]}
	times := []float64{0}

	var offset float64
	for i := 1; i < len(route); i++ {
		segPoses, segTimes := samplePath(route[i-1], route[i], speed, rate)
		for j := 1; j < len(segPoses); j++ {
			poses = append(poses, segPoses[j])
			times = append(times, offset+segTimes[j])
		}
		offset += segTimes[len(segTimes)-1]
	}
	return poses, times
}
