package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/manifold-inc/manifold-sdk/lib/utils"
)

type Model struct {
	ID                 string   `json:"id"`
	Object             string   `json:"object"`
	Created            int64    `json:"created"`
	OwnedBy            string   `json:"owned_by"`
	SupportedEndpoints []string `json:"supported_endpoints"`
}

// List returns every enabled catalog entry in /v1/models shape.
func (r *Resolver) List(ctx context.Context) ([]Model, error) {
	rows, err := r.rdb.QueryContext(ctx, `
		SELECT name, DATE_FORMAT(created_at, '%Y-%m-%d %H:%i:%s') as created, supported_endpoints
		FROM model
		WHERE enabled = true
		ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var list []Model
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			r.log.Warnw("Failed to scan model row", "error", err.Error())
			continue
		}
		list = append(list, model)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.Wrap("Error iterating over model rows", err)
	}
	return list, nil
}

func scanModel(rows *sql.Rows) (Model, error) {
	var name string
	var createdAtStr string
	var endpointsJSON sql.NullString

	if err := rows.Scan(&name, &createdAtStr, &endpointsJSON); err != nil {
		return Model{}, err
	}

	createdAt, err := time.Parse("2006-01-02 15:04:05", createdAtStr)
	if err != nil {
		return Model{}, err
	}

	endpoints := []string{}
	if endpointsJSON.Valid && endpointsJSON.String != "" {
		_ = json.Unmarshal([]byte(endpointsJSON.String), &endpoints)
	}

	return Model{
		ID:                 name,
		Object:             "model",
		Created:            createdAt.Unix(),
		OwnedBy:            "relay",
		SupportedEndpoints: endpoints,
	}, nil
}
