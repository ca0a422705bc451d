// Package inference
package inference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"relay-api/internal/cache"
	"relay-api/internal/models"
	"relay-api/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type InferenceHandler struct {
	WDB         *sql.DB
	RDB         *sql.DB
	RedisClient *redis.Client
	Log         *zap.SugaredLogger
	Debug       bool

	Resolver *models.Resolver

	respCache    *cache.ResponseCache
	httpClients  map[string]*http.Client
	clientsMutex sync.RWMutex
}

func NewInferenceHandler(wdb *sql.DB, rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger, debug bool) (*InferenceHandler, error) {
	// check if the databases are connected
	err := wdb.Ping()
	if err != nil {
		return nil, errors.New("failed ping to sql db")
	}

	err = rdb.Ping()
	if err != nil {
		return nil, errors.New("failed to ping read replica sql db")
	}

	err = redisClient.Ping(context.Background()).Err()
	if err != nil {
		return nil, errors.New("failed ping to redis db")
	}

	return &InferenceHandler{
		WDB:         wdb,
		RDB:         rdb,
		RedisClient: redisClient,
		Log:         log,
		Debug:       debug,
		Resolver:    models.NewResolver(rdb, redisClient, log),
		respCache:   cache.NewResponseCache(redisClient, log),
		httpClients: make(map[string]*http.Client),
	}, nil
}

func (im *InferenceHandler) getHTTPClient(engineURL string) *http.Client {
	parsedURL, err := url.Parse(engineURL)
	if err != nil {
		im.Log.Warnw("Failed to parse engine URL, using full URL as key", "url", engineURL, "error", err)
		parsedURL = &url.URL{Host: engineURL}
	}
	host := parsedURL.Host

	im.clientsMutex.RLock()
	if client, exists := im.httpClients[host]; exists {
		im.clientsMutex.RUnlock()
		return client
	}
	im.clientsMutex.RUnlock()

	im.clientsMutex.Lock()
	defer im.clientsMutex.Unlock()

	if client, exists := im.httpClients[host]; exists {
		return client
	}

	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 2 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 2 * time.Second,
		DisableKeepAlives:   false,
	}
	client := &http.Client{Transport: tr, Timeout: 10 * time.Minute}

	im.httpClients[host] = client
	im.Log.Infow("Created new HTTP client for host", "host", host, "full_url", engineURL)

	return client
}

type InferenceInput struct {
	Req         *RequestInfo
	User        shared.UserMetadata
	Ctx         context.Context
	FrameWriter func(frame []byte) error // callback for real-time streaming
}

type InferenceMetadata struct {
	Completed        bool
	Canceled         bool
	FromCache        bool
	Frames           uint64
	TotalTime        time.Duration
	TimeToFirstToken time.Duration
}

type InferenceOutput struct {
	FinalResponse []byte
	Metadata      *InferenceMetadata

	// This is for mid-stream errors, if any
	Error error
}

// DoInference only returns errors from bad inputs and when output would not
// exist. A partial stream would not return an error directly but be baked
// inside of InferenceOutput. The difference is that if we get an error back
// from DoInference, we can assume no http status code was sent and the router
// should send them accordingly.
func (im *InferenceHandler) DoInference(input InferenceInput) (*InferenceOutput, error) {
	if input.Req == nil {
		return nil, &shared.RequestError{
			StatusCode: 400,
			Err:        errors.New("request info missing"),
		}
	}
	reqInfo := input.Req

	userLabel := fmt.Sprintf("%d", reqInfo.UserID)
	inflight(userLabel, 1)
	defer inflight(userLabel, -1)

	out, qerr := im.Query(input.Ctx, reqInfo, input.FrameWriter)
	if qerr != nil {
		return nil, qerr
	}

	go im.PostProcess(reqInfo, out)
	return out, nil
}
