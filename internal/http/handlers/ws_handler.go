// Websocket feed handler.
//
// GET /ws upgrades the connection and streams change events for the acting
// role until the peer disconnects. The read loop exists only to observe the
// close; clients never send application frames.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
)

// Feed upgrades to a websocket and attaches the connection to the hub.
func (h *Handlers) Feed(c *gin.Context) {
	role, err := h.roleFrom(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown role")
		return
	}
	if h.hub == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "live feed is not available")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.wsOrigins,
	})
	if err != nil {
		// Accept already wrote the HTTP error.
		return
	}

	client := h.hub.AddClient(role, conn)
	defer h.hub.RemoveClient(client)

	// Block until the peer goes away; discard anything it sends.
	ctx := c.Request.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
