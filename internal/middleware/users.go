package middleware

import (
	"database/sql"
	"errors"

	"relay-api/internal/ctx"
	"relay-api/internal/shared"
	"relay-api/internal/users"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type UserMiddleware struct {
	um *users.UserManager
}

func NewUserMiddleware(rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger) (*UserMiddleware, error) {
	if rdb == nil || redisClient == nil {
		return nil, errors.New("user middleware requires db and redis clients")
	}
	return &UserMiddleware{um: users.NewUserManager(rdb, redisClient, log)}, nil
}

// ExtractUser attaches the authenticated user when a valid key is present.
// Routes that demand auth pair this with RequireUser.
func (m *UserMiddleware) ExtractUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		c.User = nil

		apiKey, err := shared.ExtractAPIKey(c)
		if err != nil {
			return next(c)
		}
		user, err := m.um.GetUserMetadataFromKey(c.Request().Context(), apiKey)
		if err != nil {
			return next(c)
		}
		c.User = user
		c.Log = c.Log.With("user_id", user.UserID)
		c.LogValues.UserID = user.UserID
		c.LogValues.RPM = user.RPM
		c.LogValues.Role = user.Role
		return next(c)
	}
}

func (m *UserMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		if c.User == nil {
			return c.String(401, "unauthorized")
		}
		return next(c)
	}
}
