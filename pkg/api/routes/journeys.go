package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
)

func JourneysRouter(router fiber.Router, sink journeysink.Sink) {
	router.Get("/:identifier", getJourney(sink))
}

func getJourney(sink journeysink.Sink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		groups := []string{"basic"}
		if c.QueryBool("detailed", true) {
			groups = append(groups, "detailed")
		}

		found, err := sink.FetchJourney(c.UserContext(), identifier)
		if errors.Is(err, journeysink.ErrNotFound) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		} else if err != nil {
			c.SendStatus(fiber.StatusBadGateway)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return sendJourney(c, fiber.StatusOK, found, groups)
	}
}
