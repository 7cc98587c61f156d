// Package http provides the REST surface of the service: health and
// diagnostics, a snapshot of the current pose state, and the frame ingest
// endpoint used by external perception producers.
package http

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posekit/posestream/internal/api/ws"
	"github.com/posekit/posestream/internal/domain/pose"
	"github.com/posekit/posestream/internal/infrastructure/logging"
	"github.com/posekit/posestream/internal/infrastructure/monitoring"
	"github.com/posekit/posestream/internal/shared/id"
)

// Handlers bundles the REST endpoint implementations.
type Handlers struct {
	engine      *pose.Engine
	store       *pose.Store
	broadcaster *ws.Broadcaster
	logger      *logging.Logger
	metrics     *monitoring.Metrics
}

// NewHandlers creates the REST handler set.
func NewHandlers(engine *pose.Engine, store *pose.Store, broadcaster *ws.Broadcaster, logger *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		engine:      engine,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		metrics:     metrics,
	}
}

// Root returns service identification and the endpoint map.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "posestream",
		"endpoints": gin.H{
			"health":  "/health",
			"pose":    "/pose",
			"frames":  "POST /frames",
			"stream":  "ws /stream",
			"metrics": "/metrics",
		},
	})
}

// Health reports liveness and basic pipeline status.
func (h *Handlers) Health(c *gin.Context) {
	_, seen := h.engine.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": h.metrics.UptimeSeconds(),
		"broadcaster":    h.broadcaster.State().String(),
		"clients":        h.broadcaster.ClientCount(),
		"pose_seen":      seen,
	})
}

// landmarkJSON is the REST representation of one landmark. Unlike the wire
// payload this is a diagnostic surface, so visibility is included and
// unknown channels are always explicit nulls.
type landmarkJSON struct {
	ID         int      `json:"id"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// GetPose returns a snapshot of the current merged pose state.
func (h *Handlers) GetPose(c *gin.Context) {
	state, seen := h.engine.Current()

	landmarks := make([]landmarkJSON, pose.NumLandmarks)
	for i := range state {
		landmarks[i] = landmarkJSON{
			ID:         i,
			X:          finite(state[i].Pos.X),
			Y:          finite(state[i].Pos.Y),
			Z:          finite(state[i].Pos.Z),
			Visibility: finite(state[i].Visibility),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"seen":      seen,
		"known":     state.KnownCount(),
		"landmarks": landmarks,
	})
}

// frameRequest is the ingest request body: one full detection sample.
type frameRequest struct {
	Landmarks []struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Z          float64 `json:"z"`
		Visibility float64 `json:"visibility"`
	} `json:"landmarks" binding:"required"`
}

// IngestFrame accepts one detection frame from an external perception
// producer and folds it into the pose state. A malformed frame is rejected
// without touching stored state.
func (h *Handlers) IngestFrame(c *gin.Context) {
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame body: " + err.Error()})
		return
	}

	landmarks := make([]pose.Landmark, len(req.Landmarks))
	for i, lm := range req.Landmarks {
		landmarks[i] = pose.Landmark{
			Pos:        r3.Vec{X: lm.X, Y: lm.Y, Z: lm.Z},
			Visibility: lm.Visibility,
		}
	}

	frame, err := pose.FrameFromSlice(landmarks)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frameID := id.NewFrameID()
	merged := h.engine.Merge(frame)
	h.store.Set(merged)

	c.JSON(http.StatusAccepted, gin.H{
		"frame_id": string(frameID),
		"known":    merged.KnownCount(),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
