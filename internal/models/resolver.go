// Package models resolves client-facing model names to engine services.
package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"relay-api/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine identifies the generation service behind a model name, along with
// the frame shapes it may be exposed through.
type Engine struct {
	ModelID    uint64 `json:"model_id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Chat       bool   `json:"chat"`
	Completion bool   `json:"completion"`
}

type Resolver struct {
	rdb   *sql.DB
	redis *redis.Client
	log   *zap.SugaredLogger
}

func NewResolver(rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger) *Resolver {
	return &Resolver{rdb: rdb, redis: redisClient, log: log}
}

// Resolve maps a model name to its engine, consulting the redis cache before
// the catalog table.
func (r *Resolver) Resolve(ctx context.Context, modelName string) (*Engine, error) {
	cacheKey := fmt.Sprintf("relay:v1:model:service:%s", modelName)
	cached, err := r.redis.Get(ctx, cacheKey).Result()
	if err == nil && cached != "" {
		var engine Engine
		if err := json.Unmarshal([]byte(cached), &engine); err == nil {
			r.log.Debugw("Cache hit for model service", "model_name", modelName)
			return &engine, nil
		}
		r.log.Warnw("Failed to unmarshal cached model service", "error", err, "model_name", modelName)
	}

	r.log.Debugw("Cache miss, querying database", "model_name", modelName)

	var engine Engine
	var endpointsJSON sql.NullString
	err = r.rdb.QueryRowContext(ctx, `
		SELECT id, name, url, supported_endpoints
		FROM model
		WHERE name = ? AND enabled = true
	`, modelName).Scan(&engine.ModelID, &engine.Name, &engine.URL, &endpointsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &shared.RequestError{StatusCode: 404, Err: fmt.Errorf("model %s not found", modelName)}
		}
		return nil, errors.Join(shared.ErrInternalServerError, err)
	}

	engine.Chat, engine.Completion = parseEndpointFlags(endpointsJSON)

	go func() {
		payload, err := json.Marshal(engine)
		if err != nil {
			r.log.Errorw("Error marshalling model service", "error", err)
			return
		}
		r.redis.Set(context.Background(), cacheKey, payload, shared.ModelServiceCacheTTL)
	}()
	return &engine, nil
}

// parseEndpointFlags reads the catalog's supported_endpoints JSON array.
// An empty or unreadable column means the model serves both shapes.
func parseEndpointFlags(col sql.NullString) (chat bool, completion bool) {
	if !col.Valid || col.String == "" {
		return true, true
	}
	var endpoints []string
	if err := json.Unmarshal([]byte(col.String), &endpoints); err != nil {
		return true, true
	}
	for _, e := range endpoints {
		switch e {
		case shared.ENDPOINTS.CHAT:
			chat = true
		case shared.ENDPOINTS.COMPLETION:
			completion = true
		}
	}
	return chat, completion
}
