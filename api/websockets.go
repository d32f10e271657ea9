package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/recondor/recondor/pkg/scan/manager"
)

// RequireWebSocketUpgrade rejects plain HTTP requests on websocket routes.
func RequireWebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ScanEventsSocket streams the progress events of one scan: the buffered
// history first, then live events until either side closes. Subscribing to a
// scan that does not exist yet is allowed; events arrive once it starts.
func ScanEventsSocket(sm *manager.ScanManager) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		scanID := conn.Params("id")
		events, cancel := sm.Broadcaster().Subscribe(scanID)
		defer cancel()
		log.Debug().Str("scan", scanID).Msg("Websocket subscriber connected")

		// Read pump. Clients are not expected to send anything, but reading
		// is how we notice the connection going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					// Dropped as a slow consumer or buffers were reset
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					log.Debug().Err(err).Str("scan", scanID).Msg("Websocket write failed, disconnecting")
					return
				}
			case <-closed:
				log.Debug().Str("scan", scanID).Msg("Websocket subscriber disconnected")
				return
			}
		}
	})
}
