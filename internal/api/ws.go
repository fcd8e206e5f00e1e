package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/notify"
)

// handleWebsocket upgrades an authenticated request and serves board
// subscriptions on it until the client disconnects.
func (s *Server) handleWebsocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.Logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	peer := notify.NewPeer(s.Hub, conn, auth.UserID(c), s.Boards.RequireMember)
	peer.Serve(c.Request.Context())
}

// checkOrigin accepts requests without an Origin header, same-host origins
// and anything in AllowedOrigins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
