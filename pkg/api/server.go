package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/api/routes"
	"github.com/varunjain2021/guido-1-sub002/pkg/api/stats"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/navcache"
)

type Server struct {
	Navigator routes.Navigator
	Sink      journeysink.Sink

	// Optional
	Snapshots *navcache.SnapshotCache
	Stats     *stats.Collector
	Auth      fiber.Handler
}

func (s *Server) App() *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("/version", routes.APIVersion)

	if s.Stats != nil {
		webApp.Get("/stats", routes.Stats(s.Stats))
	}

	var protected []fiber.Handler
	if s.Auth != nil {
		protected = append(protected, s.Auth)
	}

	routes.NavigationRouter(webApp.Group("/navigation", protected...), s.Navigator, s.Snapshots)
	routes.JourneysRouter(webApp.Group("/journeys", protected...), s.Sink)

	return webApp
}

func (s *Server) Listen(listen string) error {
	return s.App().Listen(listen)
}
