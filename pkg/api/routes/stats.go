package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/api/stats"
)

func Stats(collector *stats.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(collector.Current())
	}
}
