// Handler wiring.
//
// Handlers are transport-thin: they validate input, delegate to application
// services, and translate domain/service errors into HTTP results.
package handlers

import (
	"context"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/lovespam"
	"github.com/ourlittleworld/go-couple-backend/internal/media"
	"github.com/ourlittleworld/go-couple-backend/internal/ws"
)

//
// Service contracts (context-aware)
//

// MediaStore defines the object-store operations consumed by the media
// endpoints.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MediaStore interface {
	// Upload stores one object and returns its public URL.
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
	// Delete removes the given URLs best effort and reports per-URL outcomes.
	Delete(ctx context.Context, fileURLs []string) media.DeleteResult
}

// SpamWorker defines the love-spam session operations consumed by the worker
// and toggle endpoints.
type SpamWorker interface {
	Start() (lovespam.Status, error)
	Stop() (lovespam.Status, error)
	StatusNow() lovespam.Status
	Tick(ctx context.Context) (lovespam.Status, error)
}

// Handlers groups the HTTP endpoints for media, the love-spam worker, and the
// websocket feed. It depends on abstract contracts to keep transport concerns
// separate from business logic. Media may be nil when no bucket is configured.
type Handlers struct {
	media  MediaStore
	worker SpamWorker
	hub    *ws.Hub
	role   domain.Role

	// wsOrigins are the origin patterns accepted on websocket upgrade;
	// empty means same-origin only.
	wsOrigins []string
}

// New constructs a Handlers instance bound to the given collaborators.
// defaultRole is the partner this instance serves; requests may override it
// with an explicit role parameter. hub and media may be nil, which disables
// the corresponding endpoints.
func New(media MediaStore, worker SpamWorker, hub *ws.Hub, defaultRole domain.Role, wsOrigins []string) *Handlers {
	return &Handlers{media: media, worker: worker, hub: hub, role: defaultRole, wsOrigins: wsOrigins}
}

// roleFrom resolves the acting role for a request: explicit "role" query
// param, then "X-Role" header, then the instance default. Both the storage
// and display spellings are accepted.
func (h *Handlers) roleFrom(c *gin.Context) (domain.Role, error) {
	raw := strings.TrimSpace(c.Query("role"))
	if raw == "" {
		raw = strings.TrimSpace(c.GetHeader("X-Role"))
	}
	if raw == "" {
		return h.role, nil
	}
	return domain.ParseRole(raw)
}
