// Package users
package users

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

type UserManager struct {
	rdb   *sql.DB
	redis *redis.Client
	log   *zap.SugaredLogger
}

func NewUserManager(rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger) *UserManager {
	return &UserManager{rdb: rdb, redis: redisClient, log: log}
}

// GetUserMetadataFromKey validates an API key and returns the owning user,
// consulting the redis cache before the database.
func (u *UserManager) GetUserMetadataFromKey(ctx context.Context, apiKey string) (*shared.UserMetadata, error) {
	var userMetadata shared.UserMetadata
	userMetadata.APIKey = apiKey

	userInfoCacheKey := fmt.Sprintf("relay:v1:user:apikey:%s", apiKey)
	userInfoCache, err := u.redis.Get(ctx, userInfoCacheKey).Result()
	switch err {
	case nil:
		err = json.Unmarshal([]byte(userInfoCache), &userMetadata)
		if err == nil {
			return &userMetadata, nil
		}
		u.log.Errorw("Error unmarshalling user info cache", "error", err)
		fallthrough
	default:
		u.log.Debugw("User cache miss", "key", userInfoCacheKey)

		err = u.rdb.QueryRowContext(ctx, `
		SELECT
		user.id,
		user.email,
		user.requests_per_minute,
		user.role
		FROM user
		INNER JOIN api_key ON user.id = api_key.user_id
		WHERE api_key.id = ? AND user.enabled = 1
		`, apiKey).Scan(
			&userMetadata.UserID,
			&userMetadata.Email,
			&userMetadata.RPM,
			&userMetadata.Role,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				u.log.Warnw("Invalid API key or disabled user", "key", apiKey)
				return nil, shared.ErrUnauthorized
			}
			u.log.Errorw("Database error during API key validation", "error", err)
			return nil, shared.ErrUnauthorized
		}
		go func() {
			userInfoCache, err := json.Marshal(userMetadata)
			if err != nil {
				u.log.Errorw("Error marshalling user info", "error", err)
				return
			}
			u.redis.Set(context.Background(), userInfoCacheKey, userInfoCache, shared.UserInfoCacheTTL)
		}()
		return &userMetadata, nil
	}
}
