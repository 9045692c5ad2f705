package telemetry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/trajectory"
	"github.com/mittag-lab/maniplink/internal/version"
)

// vec3 carries one coordinate triple as a JSON array, millimetres.
type vec3 [3]float64

func fromVector(v r3.Vector) vec3 {
	return vec3{v.X, v.Y, v.Z}
}

func (v vec3) vector() r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

type poseJSON struct {
	Left  vec3 `json:"left_mm"`
	Right vec3 `json:"right_mm"`
}

func (p poseJSON) pose() kinematics.Pose {
	return kinematics.Pose{Left: p.Left.vector(), Right: p.Right.vector()}
}

type manipulatorJSON struct {
	Carriage vec3 `json:"carriage_mm"`
	Tip      vec3 `json:"tip_mm"`
}

type trajectoryJSON struct {
	State   string  `json:"state"`
	PlanID  string  `json:"plan_id,omitempty"`
	Points  int     `json:"points,omitempty"`
	Elapsed float64 `json:"elapsed_s,omitempty"`
	Ready   bool    `json:"ready"`
}

type statusResponse struct {
	Connected  bool             `json:"connected"`
	Link       string           `json:"link_state"`
	Controller string           `json:"controller_addr"`
	Left       *manipulatorJSON `json:"left,omitempty"`
	Right      *manipulatorJSON `json:"right,omitempty"`
	UpdatedAt  *time.Time       `json:"updated_at,omitempty"`
	Trajectory trajectoryJSON   `json:"trajectory"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Connected bool   `json:"connected"`
}

type stepRequest struct {
	Delta vec3 `json:"delta_mm"`
}

type planRequest struct {
	Target    *poseJSON  `json:"target,omitempty"`
	Waypoints []poseJSON `json:"waypoints,omitempty"`
}

type planResponse struct {
	ID      string  `json:"id"`
	Points  int     `json:"points"`
	Elapsed float64 `json:"elapsed_s"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("telemetry response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	resp := errorResponse{Error: message}
	if details != "" {
		resp.Details = details
	}
	writeJSON(w, code, resp)
}

// writeEngineError maps engine failures onto HTTP statuses: a missing
// connection is 503, lifecycle rejections are 409, planning defects are
// 422, everything else is 500.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	code := http.StatusInternalServerError
	var perr *trajectory.PlanningError
	switch {
	case errors.Is(err, link.ErrNotConnected):
		code = http.StatusServiceUnavailable
	case errors.Is(err, trajectory.ErrBusy),
		errors.Is(err, trajectory.ErrExecutionInFlight),
		errors.Is(err, trajectory.ErrInvalidTransition),
		errors.Is(err, trajectory.ErrNoPlan),
		errors.Is(err, trajectory.ErrNotSent):
		code = http.StatusConflict
	case errors.As(err, &perr):
		code = http.StatusUnprocessableEntity
	}
	writeError(w, code, message, err.Error())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   version.Version,
		Connected: s.engine.Connected(),
	})
}

// getStatus reports the cached snapshot; ?refresh=true forces a
// controller round trip first.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if _, err := s.engine.Status(r.Context()); err != nil {
			writeEngineError(w, "status refresh failed", err)
			return
		}
	}

	resp := statusResponse{
		Connected:  s.engine.Connected(),
		Link:       string(s.engine.LinkState()),
		Controller: s.engine.Addr(),
		Trajectory: trajectoryJSON{State: string(s.engine.TrajectoryState())},
	}
	if plan, ok := s.engine.CurrentPlan(); ok {
		resp.Trajectory.PlanID = plan.ID
		resp.Trajectory.Points = len(plan.Points)
		resp.Trajectory.Elapsed = plan.Elapsed
		resp.Trajectory.Ready = plan.Ready()
	}
	if snap, ok := s.engine.Snapshot(); ok {
		resp.Left = &manipulatorJSON{
			Carriage: fromVector(snap.Joints.Left),
			Tip:      fromVector(snap.Pose.Left),
		}
		resp.Right = &manipulatorJSON{
			Carriage: fromVector(snap.Joints.Right),
			Tip:      fromVector(snap.Pose.Right),
		}
		resp.UpdatedAt = &snap.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.engine.Step(req.Delta.vector()); err != nil {
		writeEngineError(w, "step rejected", err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

// postHome blocks until the homing move finishes or the request is
// canceled.
func (s *Server) postHome(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Home(r.Context()); err != nil {
		writeEngineError(w, "homing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "completed"})
}

func (s *Server) postPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var plan trajectory.Plan
	var err error
	switch {
	case req.Target != nil && len(req.Waypoints) > 0:
		writeError(w, http.StatusBadRequest, "target and waypoints are mutually exclusive", "")
		return
	case req.Target != nil:
		plan, err = s.engine.PlanTo(r.Context(), req.Target.pose())
	case len(req.Waypoints) > 0:
		poses := make([]kinematics.Pose, len(req.Waypoints))
		for i, wp := range req.Waypoints {
			poses[i] = wp.pose()
		}
		plan, err = s.engine.PlanWaypoints(r.Context(), poses)
	default:
		writeError(w, http.StatusBadRequest, "target or waypoints required", "")
		return
	}
	if err != nil {
		writeEngineError(w, "planning failed", err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{
		ID:      plan.ID,
		Points:  len(plan.Points),
		Elapsed: plan.Elapsed,
	})
}

func (s *Server) postSend(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Send(); err != nil {
		writeEngineError(w, "upload rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "sent"})
}

func (s *Server) postExecute(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Execute(); err != nil {
		writeEngineError(w, "execution rejected", err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "executing"})
}

func (s *Server) postClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearPlan(); err != nil {
		writeEngineError(w, "clear rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Status: "cleared"})
}
