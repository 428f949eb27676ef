package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"dinidesk_backend/internal/identity"
)

const (
	localState = "auth_state"
	localToken = "auth_token"

	// TokenCookie is read when no Authorization header is sent.
	TokenCookie = "auth_token"
)

// Authenticate resolves the caller once per request and stores the result
// for Guard and the handlers. It never rejects a request by itself.
func Authenticate(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFrom(c)
		state, err := identity.Resolve(c.UserContext(), provider, token)
		if err != nil {
			// identity store unreachable: the caller is neither in nor out yet
			log.Warn().Err(err).Str("path", c.Path()).Msg("Could not resolve session")
			state = identity.State{Loading: true}
		}
		c.Locals(localState, state)
		c.Locals(localToken, token)
		return c.Next()
	}
}

// TokenFrom extracts a bearer token or the session cookie.
func TokenFrom(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Cookies(TokenCookie)
}

// StateFrom returns the state stored by Authenticate, or an anonymous one.
func StateFrom(c *fiber.Ctx) identity.State {
	if st, ok := c.Locals(localState).(identity.State); ok {
		return st
	}
	return identity.State{}
}

// ActorFrom returns the resolved actor, nil when anonymous.
func ActorFrom(c *fiber.Ctx) *identity.Actor {
	return StateFrom(c).Actor
}

// SessionToken returns the raw token the request was authenticated with.
func SessionToken(c *fiber.Ctx) string {
	token, _ := c.Locals(localToken).(string)
	return token
}
