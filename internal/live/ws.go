package live

import (
	"log/slog"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ServeWS upgrades the request to a websocket and streams hub events to
// the client as text frames until either side goes away.
func ServeWS(hub *Hub, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		defer conn.Close()

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)

		gone := make(chan struct{})
		go readUntilClosed(conn, gone)

		for {
			select {
			case <-gone:
				return
			case <-c.Request.Context().Done():
				return
			case frame, ok := <-sub.C():
				if !ok {
					return
				}
				if err := wsutil.WriteServerText(conn, frame); err != nil {
					logger.Debug("websocket write failed",
						slog.String("subscriber", sub.ID()),
						slog.String("error", err.Error()),
					)
					return
				}
			}
		}
	}
}

// readUntilClosed drains client frames (answering pings) and closes gone
// once the client disconnects.
func readUntilClosed(conn net.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			return
		}
	}
}
