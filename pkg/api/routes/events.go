package routes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

const eventStreamBuffer = 64

var eventStreamKeepAlive = 15 * time.Second

// streamEvents relays navigation events as server-sent events until the
// client goes away or the hub is closed.
func streamEvents(hub *navigation.EventHub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		events, unsubscribe := hub.Subscribe(eventStreamBuffer)

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			keepAlive := time.NewTicker(eventStreamKeepAlive)
			defer keepAlive.Stop()

			var journeys navigation.JourneyTracker

			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}

					payload, err := json.Marshal(navigation.NewArchivedEvent(event, journeys.Track(event), time.Now()))
					if err != nil {
						log.Error().Err(err).Str("event", string(event.Kind())).Msg("Failed to encode navigation event")
						continue
					}

					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind(), payload)
				case <-keepAlive.C:
					fmt.Fprint(w, ": keep-alive\n\n")
				}

				if err := w.Flush(); err != nil {
					log.Debug().Err(err).Msg("Event stream client disconnected")
					return
				}
			}
		})

		return nil
	}
}
