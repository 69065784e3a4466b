package routes

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/navcache"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

// Navigator is the part of the coordinator the HTTP surface drives
type Navigator interface {
	Start(ctx context.Context, request navigation.StartRequest) (*journey.Journey, error)
	Stop(ctx context.Context, cancelled bool) *journey.Journey
	Snapshot() navigation.Snapshot
	Events() *navigation.EventHub
}

type placeBody struct {
	Address   string  `json:"address"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

func (p placeBody) place() journey.Place {
	return journey.Place{
		Address:    p.Address,
		Name:       p.Name,
		Coordinate: journey.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude},
	}
}

type startBody struct {
	UserID      string     `json:"user_id"`
	SessionID   string     `json:"session_id"`
	Origin      *placeBody `json:"origin"`
	Destination placeBody  `json:"destination"`
	Mode        string     `json:"mode"`

	DistanceMeters  *int `json:"distance_meters"`
	DurationSeconds *int `json:"duration_seconds"`
	StepCount       *int `json:"step_count"`
}

var startErrorStatus = []struct {
	err    error
	status int
}{
	{navigation.ErrAlreadyNavigating, fiber.StatusConflict},
	{navigation.ErrStartCancelled, fiber.StatusConflict},
	{navigation.ErrInvalidDestination, fiber.StatusBadRequest},
	{navigation.ErrTermsNotAccepted, fiber.StatusForbidden},
	{navigation.ErrAPIKeyNotAuthorized, fiber.StatusForbidden},
	{navigation.ErrQuotaExceeded, fiber.StatusTooManyRequests},
	{navigation.ErrNoRouteFound, fiber.StatusUnprocessableEntity},
	{navigation.ErrLocationUnavailable, fiber.StatusUnprocessableEntity},
	{navigation.ErrNavigatorUnavailable, fiber.StatusServiceUnavailable},
}

func startStatus(err error) int {
	for _, mapping := range startErrorStatus {
		if errors.Is(err, mapping.err) {
			return mapping.status
		}
	}

	return fiber.StatusBadGateway
}

func NavigationRouter(router fiber.Router, navigator Navigator, snapshots *navcache.SnapshotCache) {
	router.Post("/start", startNavigation(navigator))
	router.Post("/stop", stopNavigation(navigator))
	router.Get("/state", getNavigationState(navigator))
	router.Get("/state/:journey", getJourneyState(navigator, snapshots))
	router.Get("/events", streamEvents(navigator.Events()))
}

func startNavigation(navigator Navigator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var requestBody startBody
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse request body",
			})
		}

		mode, err := journey.ParseTravelMode(requestBody.Mode)
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		request := navigation.StartRequest{
			UserID:          requestBody.UserID,
			SessionID:       requestBody.SessionID,
			Destination:     requestBody.Destination.place(),
			Mode:            mode,
			DistanceMeters:  requestBody.DistanceMeters,
			DurationSeconds: requestBody.DurationSeconds,
			StepCount:       requestBody.StepCount,
		}
		if requestBody.Origin != nil {
			origin := requestBody.Origin.place()
			request.Origin = &origin
		}
		if userID, ok := c.Locals("account_userid").(string); ok && userID != "" {
			request.UserID = userID
		}

		started, err := navigator.Start(c.UserContext(), request)
		if err != nil {
			c.SendStatus(startStatus(err))
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return sendJourney(c, fiber.StatusCreated, started, []string{"basic"})
	}
}

func stopNavigation(navigator Navigator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		final := navigator.Stop(c.UserContext(), c.QueryBool("cancelled", true))
		if final == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "No active navigation session",
			})
		}

		return sendJourney(c, fiber.StatusOK, final, []string{"basic"})
	}
}

func getNavigationState(navigator Navigator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(navigator.Snapshot())
	}
}

func getJourneyState(navigator Navigator, snapshots *navcache.SnapshotCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		journeyID := c.Params("journey")

		if current := navigator.Snapshot(); current.JourneyID == journeyID {
			return c.JSON(current)
		}

		if snapshots != nil {
			snapshot, err := snapshots.Journey(c.UserContext(), journeyID)
			if err == nil {
				return c.JSON(snapshot)
			} else if !errors.Is(err, navcache.ErrNoSnapshot) {
				c.SendStatus(fiber.StatusInternalServerError)
				return c.JSON(fiber.Map{
					"error": err.Error(),
				})
			}
		}

		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No navigation state for journey",
		})
	}
}

func sendJourney(c *fiber.Ctx, status int, j *journey.Journey, groups []string) error {
	journeyReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, j)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Journey",
		})
	}

	c.Status(status)
	return c.JSON(journeyReduced)
}
