package routers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"relay-api/internal/ctx"
	"relay-api/internal/inference"
	"relay-api/internal/middleware"
	"relay-api/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type InferenceRouter struct {
	ih *inference.InferenceHandler
}

func RegisterInferenceRoutes(e *echo.Group, wdb *sql.DB, rdb *sql.DB, redisClient *redis.Client, log *zap.SugaredLogger, debug bool) error {
	inferenceHandler, err := inference.NewInferenceHandler(wdb, rdb, redisClient, log, debug)
	if err != nil {
		return err
	}
	umw, err := middleware.NewUserMiddleware(rdb, redisClient, log)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(redisClient, log)

	inferenceRouter := InferenceRouter{ih: inferenceHandler}

	v1 := e.Group("/v1")
	extractUser := v1.Group("", umw.ExtractUser)
	requireUser := v1.Group("", umw.ExtractUser, umw.RequireUser, limiter.Limit)

	extractUser.GET("/models", inferenceRouter.GetModels)
	requireUser.POST("/chat/completions", inferenceRouter.ChatRequest)
	requireUser.POST("/completions", inferenceRouter.CompletionRequest)
	return nil
}

type ModelList struct {
	Object string `json:"object"`
	Data   []any  `json:"data"`
}

func (ir *InferenceRouter) GetModels(cc echo.Context) error {
	c := cc.(*ctx.Context)

	rctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := ir.ih.Resolver.List(rctx)
	if err != nil {
		c.LogValues.AddError(errors.Join(errors.New("failed to get models"), err))
		return c.String(500, "Failed to get models")
	}

	data := make([]any, 0, len(list))
	for _, m := range list {
		data = append(data, m)
	}
	return c.JSON(200, ModelList{Object: "list", Data: data})
}

func (ir *InferenceRouter) ChatRequest(cc echo.Context) error {
	return ir.Inference(cc, shared.ENDPOINTS.CHAT)
}

func (ir *InferenceRouter) CompletionRequest(cc echo.Context) error {
	return ir.Inference(cc, shared.ENDPOINTS.COMPLETION)
}

func (ir *InferenceRouter) Inference(cc echo.Context, endpoint string) error {
	c := cc.(*ctx.Context)
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.LogValues.AddError(err)
		return c.JSON(http.StatusBadRequest, shared.OpenAIError{
			Message: "failed to read request body",
			Object:  "error",
			Type:    "BadRequest",
			Code:    http.StatusBadRequest,
		})
	}

	reqInfo, preErr := ir.ih.Preprocess(c.Request().Context(), inference.PreprocessInput{
		Body:      body,
		User:      *c.User,
		Endpoint:  endpoint,
		RequestID: c.Reqid,
	})
	if preErr != nil {
		c.LogValues.AddError(preErr)
		return sendOpenAIError(c, preErr)
	}

	var out *inference.InferenceOutput
	var reqErr error
	switch reqInfo.Stream {
	case true:
		out, reqErr = ir.StreamInference(c, reqInfo)
	case false:
		out, reqErr = ir.NonStreamInference(c, reqInfo)
	}

	// This is only the case that an error happens and no headers or data has
	// been sent back. This *should* be a rare case
	if reqErr != nil {
		c.LogValues.AddError(reqErr)
		c.LogValues.LogLevel = "ERROR"
		if c.Response().Committed {
			// Headers already went out; nothing sane left to send.
			return nil
		}
		return sendOpenAIError(c, reqErr)
	}

	// Track all metadata for request
	c.LogValues.StreamInfo = &ctx.StreamInfo{
		ModelName: reqInfo.Model,
		ModelID:   reqInfo.Engine.ModelID,
		Stream:    reqInfo.Stream,
		Frames:    out.Metadata.Frames,
		Completed: out.Metadata.Completed,
		Canceled:  out.Metadata.Canceled,
	}
	c.LogValues.AddError(out.Error)
	if out.Error != nil {
		c.LogValues.LogLevel = "ERROR"
	}
	return nil
}

func (ir *InferenceRouter) StreamInference(c *ctx.Context, reqInfo *inference.RequestInfo) (*inference.InferenceOutput, error) {
	setupSSEHeaders(c)
	frameWriter := createFrameWriter(c)

	return ir.ih.DoInference(inference.InferenceInput{
		Req:         reqInfo,
		User:        *c.User,
		Ctx:         c.Request().Context(),
		FrameWriter: frameWriter,
	})
}

func (ir *InferenceRouter) NonStreamInference(c *ctx.Context, reqInfo *inference.RequestInfo) (*inference.InferenceOutput, error) {
	out, reqErr := ir.ih.DoInference(inference.InferenceInput{
		Req:  reqInfo,
		User: *c.User,
		Ctx:  c.Request().Context(),
	})
	if reqErr != nil {
		return out, reqErr
	}

	// Need to actually send back response for non streaming requests
	c.Response().Header().Set("Content-Type", "application/json")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write(out.FinalResponse); err != nil {
		c.LogValues.AddError(errors.Join(errors.New("failed writing final response"), err))
		c.LogValues.LogLevel = "ERROR"
		return out, nil
	}
	return out, nil
}

func sendOpenAIError(c *ctx.Context, err error) error {
	var rerr *shared.RequestError
	if !errors.As(err, &rerr) {
		return c.JSON(500, shared.OpenAIError{
			Message: "internal server error",
			Object:  "error",
			Type:    "InternalError",
			Code:    500,
		})
	}
	return c.JSON(rerr.StatusCode, shared.OpenAIError{
		Message: rerr.Error(),
		Object:  "error",
		Type:    "InternalError",
		Code:    rerr.StatusCode,
	})
}
