package presence

import (
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/utils"
)

// Handler upgrades an authorized request and keeps the account registered
// until the peer goes away. Messages from the client are ignored.
// allowedOrigins are full origins such as https://app.example.com.
func (r *Registry) Handler(allowedOrigins []string) http.HandlerFunc {
	originPatterns := originHosts(allowedOrigins)
	return func(w http.ResponseWriter, req *http.Request) {
		identity := middleware.GetIdentity(req)
		if identity == nil {
			utils.WriteErrorAndStatusCode(w, internal_errors.ErrIdentityUnresolvable)
			return
		}

		conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Log.Debug("websocket accept failed", "account_id", identity.Id, "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(conn)
		r.Connect(identity.Id, client)
		defer r.Disconnect(identity.Id, client)
		logger.Log.Debug("presence connected", "account_id", identity.Id)

		ctx := conn.CloseRead(req.Context())
		<-ctx.Done()
		logger.Log.Debug("presence disconnected", "account_id", identity.Id)
	}
}

// originHosts converts origins to the host patterns the websocket handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
