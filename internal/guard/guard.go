// Package guard decides whether an actor may enter a protected section.
package guard

import (
	"net/url"

	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/model"
)

type Status string

const (
	Loading         Status = "LOADING"
	Unauthenticated Status = "UNAUTHENTICATED"
	Authorized      Status = "AUTHORIZED"
	Forbidden       Status = "FORBIDDEN"
)

const (
	LoginPath   = "/login"
	DefaultPath = "/"
)

// Requirement is attached statically to a guarded section.
type Requirement struct {
	RequireAdmin bool
	RequireStaff bool
}

type Input struct {
	State identity.State
	Path  string
}

type Decision struct {
	Status   Status
	Redirect string
}

// Evaluate is a pure function of its input; nothing is remembered between
// calls, so a role change takes effect on the next request.
func Evaluate(in Input, req Requirement) Decision {
	if in.State.Loading {
		return Decision{Status: Loading}
	}
	actor := in.State.Actor
	if actor == nil {
		return Decision{Status: Unauthenticated, Redirect: LoginRedirect(in.Path)}
	}

	role := actor.Role.OrDefault()
	if req.RequireAdmin && role != model.RoleAdmin {
		return Decision{Status: Forbidden, Redirect: DefaultPath}
	}
	if req.RequireStaff && role != model.RoleStaff && role != model.RoleAdmin {
		return Decision{Status: Forbidden, Redirect: DefaultPath}
	}
	return Decision{Status: Authorized}
}

// LoginRedirect carries the requested path so login can return there.
func LoginRedirect(path string) string {
	if path == "" {
		return LoginPath
	}
	return LoginPath + "?returnUrl=" + url.QueryEscape(path)
}
