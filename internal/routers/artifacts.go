package routers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"relay-api/internal/ctx"
	"relay-api/internal/middleware"
	"relay-api/internal/objstore"
	"relay-api/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Artifact uploads are capped well above any reasonable prompt attachment.
const maxArtifactSize = 32 << 20 // 32 MB

type ArtifactRouter struct {
	store *objstore.Store
}

func RegisterArtifactRoutes(e *echo.Group, store *objstore.Store, rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger) error {
	umw, err := middleware.NewUserMiddleware(rdb, redisClient, log)
	if err != nil {
		return err
	}

	artifactRouter := ArtifactRouter{store: store}

	v1 := e.Group("/v1/artifacts", umw.ExtractUser, umw.RequireUser)
	v1.GET("/:name", artifactRouter.GetArtifact)
	v1.PUT("/:name", artifactRouter.PutArtifact)
	return nil
}

func (ar *ArtifactRouter) GetArtifact(cc echo.Context) error {
	c := cc.(*ctx.Context)
	name := c.Param("name")

	data, contentType, err := ar.store.Fetch(c.Request().Context(), name)
	if err != nil {
		c.LogValues.AddError(err)
		var rerr *shared.RequestError
		if errors.As(err, &rerr) {
			return c.String(rerr.StatusCode, rerr.Err.Error())
		}
		return c.String(500, "failed to fetch artifact")
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (ar *ArtifactRouter) PutArtifact(cc echo.Context) error {
	c := cc.(*ctx.Context)
	name := c.Param("name")

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxArtifactSize+1))
	if err != nil {
		c.LogValues.AddError(err)
		return c.String(http.StatusBadRequest, "failed to read artifact body")
	}
	if len(data) > maxArtifactSize {
		return c.String(http.StatusRequestEntityTooLarge, "artifact too large")
	}

	contentType := c.Request().Header.Get("Content-Type")
	if err := ar.store.Store(c.Request().Context(), name, contentType, data); err != nil {
		c.LogValues.AddError(err)
		return c.String(500, "failed to store artifact")
	}
	return c.NoContent(http.StatusCreated)
}
