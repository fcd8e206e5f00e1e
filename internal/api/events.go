package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/notify"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams board update signals as server-sent events for
// clients that cannot hold a websocket. Membership is checked again for every
// signal: a removed member gets an error event and the stream ends.
func (s *Server) handleEvents(c *gin.Context) {
	boardID := c.Param("id")
	userID := auth.UserID(c)
	if err := s.Boards.RequireMember(c.Request.Context(), userID, boardID); err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := s.Hub.Subscribe(boardID)
	defer sub.Close()

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected", "board_id": boardID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case sig := <-sub.C:
			err := s.Boards.RequireMember(ctx, userID, boardID)
			if errors.Is(err, apperr.ErrUnauthorized) {
				writeSSE(c.Writer, "error", apperr.BodyOf(err))
				c.Writer.Flush()
				return
			}
			writeSSE(c.Writer, eventName(sig), sig)
			c.Writer.Flush()
			if errors.Is(err, apperr.ErrNotFound) {
				return
			}
		}
	}
}

func eventName(sig notify.Signal) string {
	if sig.Type == notify.TypeBoardUpdate {
		return "board_update"
	}
	return "message"
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
