package websocket

import (
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

// Serve upgrades the request to a WebSocket and streams sub's events over it
// until either side goes away. sub is closed on return.
func Serve(w http.ResponseWriter, r *http.Request, sub *Subscription, logger *slog.Logger) {
	// Streams outlive the server's request timeouts.
	rc := http.NewResponseController(w)
	rc.SetReadDeadline(time.Time{})
	rc.SetWriteDeadline(time.Time{})

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true, // mobile and CLI clients; access is gated by the api key and bearer token
	})
	if err != nil {
		sub.Close()
		logger.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	logger.Debug("subscriber connected", "list_id", sub.ListID())
	NewClient(conn, sub, logger).Run(r.Context())
	logger.Debug("subscriber disconnected", "list_id", sub.ListID())
}
