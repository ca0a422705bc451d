// Package routers
package routers

import (
	"fmt"
	"net/http"

	"relay-api/internal/ctx"
)

func setupSSEHeaders(c *ctx.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-store, no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
}

// createFrameWriter returns the sink the transcoder writes frames through.
// A client disconnect surfaces as an error so upstream work stops.
func createFrameWriter(c *ctx.Context) func(frame []byte) error {
	return func(frame []byte) error {
		if err := c.Request().Context().Err(); err != nil {
			return err
		}
		if _, err := c.Response().Write(frame); err != nil {
			return fmt.Errorf("failed writing frame: %w", err)
		}
		c.Response().Flush()
		return nil
	}
}
