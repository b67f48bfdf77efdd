package jwttoken

import (
	"deltaker/internal/platform/middleware"
)

// JWTServiceAdapter narrows JWTService to what the auth middleware needs.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.ActorClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.ActorClaims{
		NavIdent: claims.NavIdent,
		Enhet:    claims.Enhet,
	}, nil
}
