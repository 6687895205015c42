package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ClientIDHeader identifies the browser profile a request belongs to.
	ClientIDHeader = "Client-Id"
	// ClientIDQuery is accepted where headers cannot be set, e.g. downloads.
	ClientIDQuery = "client-id"

	clientIDKey = "chunks.client_id"
)

// ClientIDFromRequest reads the client id from the header, then the query.
func ClientIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ClientIDHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get(ClientIDQuery))
}

// RequireClientID rejects requests without a client id.
func RequireClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ClientIDFromRequest(c.Request)
		if id == "" {
			RespondError(c, http.StatusBadRequest, "缺少 client-id", gin.H{})
			c.Abort()
			return
		}
		c.Set(clientIDKey, id)
		c.Next()
	}
}

// ClientID returns the id stored by RequireClientID.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(clientIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ClientIDFromRequest(c.Request)
}
