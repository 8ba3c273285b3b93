package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
)

// The gateway verifies the bearer token and forwards the caller's
// identity in these headers. The service trusts them; it is never
// exposed without the gateway in front.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

var errNoPrincipal = errors.New("missing principal headers")

func principalFromRequest(r *http.Request) (lifecycle.Principal, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	role := strings.TrimSpace(r.Header.Get(HeaderRole))
	if id == "" || role == "" {
		return lifecycle.Principal{}, errNoPrincipal
	}
	switch lifecycle.Role(role) {
	case lifecycle.RolePatient, lifecycle.RoleAdmin:
		return lifecycle.Principal{ID: id, Role: lifecycle.Role(role)}, nil
	default:
		return lifecycle.Principal{}, errNoPrincipal
	}
}
