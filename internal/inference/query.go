package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"relay-api/internal/metrics"
	"relay-api/internal/shared"
	"relay-api/internal/transcode"
)

// Query forwards the request to the engine and drives the transcoder over
// its response. For streaming requests frameWriter receives each framed
// event as it is produced; once it has been called, Query never surfaces an
// error to the router since headers are already on the wire.
func (im *InferenceHandler) Query(ctx context.Context, req *RequestInfo, frameWriter func(frame []byte) error) (*InferenceOutput, error) {
	if !req.Stream {
		if cached, ok := im.respCache.Get(ctx, req.Fingerprint); ok {
			metrics.CacheHits.WithLabelValues(req.Model, req.Endpoint).Inc()
			return &InferenceOutput{
				FinalResponse: cached,
				Metadata: &InferenceMetadata{
					Completed: true,
					FromCache: true,
					TotalTime: time.Since(req.StartTime),
				},
			}, nil
		}
	}

	route := shared.ROUTES[req.Endpoint]
	r, err := http.NewRequest("POST", req.Engine.URL+route, bytes.NewBuffer(req.Body))
	if err != nil {
		return nil, errors.Join(&shared.RequestError{
			StatusCode: 400,
			Err:        errors.New("failed building request"),
		}, err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Connection":   "keep-alive",
		"X-Request-ID": req.ID,
	}
	for key, value := range headers {
		r.Header.Set(key, value)
	}

	// Handle cold starts - engines scaling from 0 can take time to load.
	// The timer is stopped once the first frame goes out; the client context
	// watcher releases the upstream read when the client goes away.
	var timeoutOccurred atomic.Bool
	rctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(shared.DefaultStreamRequestTimeout, func() {
		if req.Stream {
			timeoutOccurred.Store(true)
			cancel()
		}
	})
	stopWatch := context.AfterFunc(ctx, cancel)
	defer func() {
		timer.Stop()
		stopWatch()
		cancel()
	}()
	r = r.WithContext(rctx)

	httpClient := im.getHTTPClient(req.Engine.URL)
	res, err := httpClient.Do(r)

	defer func() {
		if res != nil && res.Body != nil {
			if closeErr := res.Body.Close(); closeErr != nil {
				im.Log.Warnw("Failed to close response body", "error", closeErr)
			}
		}
	}()

	// Case coldstart
	if err != nil && timeoutOccurred.Load() {
		return nil, errors.Join(&shared.RequestError{StatusCode: 503, Err: errors.New("cold start detected, please try again in a few minutes")}, shared.ErrFailedEngineReq)
	}
	if err != nil && ctx.Err() != nil {
		return nil, errors.Join(&shared.RequestError{StatusCode: 499, Err: errors.New("client closed request")}, ctx.Err())
	}
	if err != nil {
		return nil, errors.Join(shared.ErrInternalServerError, shared.ErrFailedEngineReq, err)
	}
	if res != nil && res.StatusCode != http.StatusOK {
		return nil, errors.Join(&shared.RequestError{StatusCode: res.StatusCode, Err: errors.New("engine request failed")}, shared.ErrFailedEngineReqFromCode)
	}

	mode := transcode.ModeChat
	if req.Endpoint == shared.ENDPOINTS.COMPLETION {
		mode = transcode.ModeCompletion
	}

	var ttft time.Duration
	var ttftRecorded bool
	var fullText strings.Builder
	clientDisconnected := false

	emit := func(frame []byte) error {
		if !ttftRecorded {
			ttft = time.Since(req.StartTime)
			ttftRecorded = true
			timer.Stop()
		}
		if frameWriter == nil || clientDisconnected {
			return nil
		}
		if err := frameWriter(frame); err != nil {
			clientDisconnected = true
		}
		return nil
	}

	sess := transcode.NewSession(transcode.Config{
		ID:      req.ResponseID,
		Created: req.StartTime.Unix(),
		Model:   req.Model,
		Mode:    mode,
		Emit:    emit,
		OnFragment: func(fragment string) {
			fullText.WriteString(fragment)
		},
		Log: im.Log.With("request_id", req.ID),
	})

	var readErr error
	buf := make([]byte, 4096)
	for {
		n, err := res.Body.Read(buf)
		if n > 0 {
			if werr := sess.Write(buf[:n]); werr != nil {
				readErr = werr
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
		if sess.Finished() {
			// Explicit sentinel observed, nothing left to transcode.
			break
		}
	}

	flushErr := sess.Flush()
	canceled := ctx.Err() != nil

	var errs error
	if timeoutOccurred.Load() {
		errs = errors.Join(errs, shared.ErrEngineContext, rctx.Err())
	}
	if readErr != nil && !canceled {
		errs = errors.Join(errs, shared.ErrFailedReadingResponse, readErr)
	}
	if flushErr != nil {
		errs = errors.Join(errs, flushErr)
	}
	if !sess.SentinelSeen() {
		errs = errors.Join(errs, shared.ErrMissingDoneToken)
	}
	if skipped := sess.Skipped(); skipped > 0 {
		metrics.SkippedEventLines.WithLabelValues(req.Model, req.Endpoint).Add(float64(skipped))
	}

	meta := &InferenceMetadata{
		Completed:        sess.SentinelSeen(),
		Canceled:         canceled,
		Frames:           sess.Frames(),
		TotalTime:        time.Since(req.StartTime),
		TimeToFirstToken: ttft,
	}

	if req.Stream {
		return &InferenceOutput{Metadata: meta, Error: errs}, nil
	}

	final, err := encodeFinalResponse(req, fullText.String())
	if err != nil {
		return nil, errors.Join(shared.ErrInternalServerError, err)
	}
	if meta.Completed && !canceled {
		im.respCache.Put(context.WithoutCancel(ctx), req.Fingerprint, final)
	}
	return &InferenceOutput{FinalResponse: final, Metadata: meta, Error: errs}, nil
}
