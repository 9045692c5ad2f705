package trajectory

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/mittag-lab/maniplink/internal/kinematics"
)

// WaypointFile is the on-disk YAML schema for a saved route.
type WaypointFile struct {
	Name   string          `yaml:"name"`
	Points []WaypointEntry `yaml:"points"`
}

// WaypointEntry is one pose, both tool tips in millimetres.
type WaypointEntry struct {
	Left  [3]float64 `yaml:"left"`
	Right [3]float64 `yaml:"right"`
}

// LoadWaypoints reads a route file and returns its poses in order.
func LoadWaypoints(path string) ([]kinematics.Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trajectory: read waypoints: %w", err)
	}

	var file WaypointFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("trajectory: parse waypoints %s: %w", path, err)
	}
	if len(file.Points) == 0 {
		return nil, fmt.Errorf("trajectory: %s: %w", path, ErrNoWaypoints)
	}

	poses := make([]kinematics.Pose, len(file.Points))
	for i, p := range file.Points {
		poses[i] = kinematics.Pose{
			Left:  r3.Vector{X: p.Left[0], Y: p.Left[1], Z: p.Left[2]},
			Right: r3.Vector{X: p.Right[0], Y: p.Right[1], Z: p.Right[2]},
		}
	}
	return poses, nil
}
