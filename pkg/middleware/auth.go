package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"turfbook/pkg/auth"
	apperrors "turfbook/pkg/errors"
	httputil "turfbook/pkg/http"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"
)

const identityKey contextKey = "identity"

// AccessGate wraps protected routes: it verifies the bearer token, checks the
// caller holds the required role, and injects the verified identity into the
// request context. Ownership of individual records stays with the domain
// services, so "not found" and "not owned" cannot diverge in responses.
type AccessGate struct {
	issuer *auth.TokenIssuer
	log    *logger.Logger
}

func NewAccessGate(issuer *auth.TokenIssuer, log *logger.Logger) *AccessGate {
	return &AccessGate{
		issuer: issuer,
		log:    log,
	}
}

// Protect requires a valid token whose role matches the given role.
func (g *AccessGate) Protect(role model.Role, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		identity, err := g.authenticate(r)
		if err != nil {
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				g.log.Error("failed to write error response", "middleware", "AccessGate", "error", writeErr)
			}
			return
		}

		if identity.Role != role {
			g.log.Warn("Role mismatch on protected route",
				"request_id", requestIDFrom(r.Context()),
				"path", r.URL.Path,
				"required_role", role,
				"actor_role", identity.Role,
			)
			if writeErr := httputil.WriteError(w, apperrors.Forbidden("This operation is not permitted for your role")); writeErr != nil {
				g.log.Error("failed to write error response", "middleware", "AccessGate", "error", writeErr)
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx), ps)
	}
}

func (g *AccessGate) authenticate(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return auth.Identity{}, apperrors.Unauthenticated("Missing or invalid authentication token")
	}

	identity, err := g.issuer.Verify(token)
	if err != nil {
		return auth.Identity{}, apperrors.Unauthenticated("Missing or invalid authentication token")
	}

	return identity, nil
}

// IdentityFromContext returns the verified identity placed by Protect.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}
