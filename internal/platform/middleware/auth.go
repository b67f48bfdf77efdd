package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "deltaker/pkg/domain"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ActorClaims, error)
}

// ActorClaims represents the claims we expect from the token validator.
type ActorClaims struct {
	NavIdent string
	Enhet    string
}

type contextKeyActor struct{}

// GetActor retrieves the authenticated actor from the context. The zero
// Actor means the request never passed RequireAuth.
func GetActor(ctx context.Context) id.Actor {
	actor, ok := ctx.Value(contextKeyActor{}).(id.Actor)
	if !ok {
		return id.Actor{}
	}
	return actor
}

func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(ctx, w, logger, "Invalid or expired token")
					return
				}

				actor := id.Actor{
					Ident: id.NavIdent(claims.NavIdent),
					Enhet: id.Enhetsnummer(claims.Enhet),
				}
				ctx := context.WithValue(r.Context(), contextKeyActor{}, actor)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeUnauthorized(ctx, w, logger, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
