package inference

import (
	"errors"
	"fmt"
	"time"

	"relay-api/internal/database"
	"relay-api/internal/metrics"
	"relay-api/internal/shared"
)

// PostProcess records the finished request to the request log and metrics.
// Runs in its own goroutine; failures here must never affect the response.
func (im *InferenceHandler) PostProcess(req *RequestInfo, res *InferenceOutput) {
	if res.Metadata == nil {
		return
	}

	pqi := &shared.ProcessedQueryInfo{
		UserID:           req.UserID,
		Model:            req.Model,
		ModelID:          req.Engine.ModelID,
		Endpoint:         req.Endpoint,
		Frames:           res.Metadata.Frames,
		Completed:        res.Metadata.Completed,
		Canceled:         res.Metadata.Canceled,
		TimeToFirstToken: res.Metadata.TimeToFirstToken,
		TotalTime:        res.Metadata.TotalTime,
		CreatedAt:        time.Now(),
	}

	if err := database.SaveRequest(im.WDB, req.ID, pqi); err != nil {
		im.Log.Warnw("Failed to save request log", "error", err, "request_id", req.ID)
	}

	metrics.RequestDuration.WithLabelValues(req.Model, req.Endpoint).Observe(res.Metadata.TotalTime.Seconds())
	if res.Metadata.TimeToFirstToken != time.Duration(0) {
		metrics.TimeToFirstToken.WithLabelValues(req.Model, req.Endpoint).Observe(res.Metadata.TimeToFirstToken.Seconds())
	}
	metrics.FramesStreamed.WithLabelValues(req.Model, req.Endpoint).Add(float64(res.Metadata.Frames))
	status := "success"
	if !res.Metadata.Completed {
		status = "incomplete"
	}
	metrics.RequestCount.WithLabelValues(req.Model, req.Endpoint, status).Inc()
	if res.Metadata.Canceled {
		metrics.CanceledRequests.WithLabelValues(req.Model, fmt.Sprintf("%d", req.UserID)).Inc()
	}

	var merr *shared.MetricsError
	if errors.As(res.Error, &merr) {
		metrics.ErrorCount.WithLabelValues(req.Model, req.Endpoint, fmt.Sprintf("%d", req.UserID), merr.Code).Inc()
	}
}

func inflight(userLabel string, delta float64) {
	metrics.InflightRequests.WithLabelValues(userLabel).Add(delta)
}
