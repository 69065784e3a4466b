package api

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
}

func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (interface{}, error)
}

// AuthFromEnvironment returns the JWT middleware when an Auth0 domain is
// configured, or nil when the API runs unauthenticated.
func AuthFromEnvironment() (fiber.Handler, error) {
	env := util.GetEnvironmentVariables()

	domain := env["GUIDO_AUTH0_DOMAIN"]
	if domain == "" {
		return nil, nil
	}

	audience := env["GUIDO_AUTH0_AUDIENCE"]
	if audience == "" {
		return nil, errors.New("GUIDO_AUTH0_AUDIENCE must be set with GUIDO_AUTH0_DOMAIN")
	}

	return EnsureValidToken(domain, audience)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(domain string, audience string) (fiber.Handler, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return tokenMiddleware(jwtValidator), nil
}

func tokenMiddleware(jwtValidator tokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)

		if authHeader == "" {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Authorization header is required",
			})
		}

		jwtToken, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || jwtToken == "" {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Authorization header must be a bearer token",
			})
		}

		claimsI, jwtErr := jwtValidator.ValidateToken(c.UserContext(), jwtToken)
		if jwtErr != nil {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Invalid auth token",
			})
		}

		claims, ok := claimsI.(*validator.ValidatedClaims)
		if !ok {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Invalid auth token",
			})
		}

		c.Locals("account_userid", claims.RegisteredClaims.Subject)

		return c.Next()
	}
}
