package testserver

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// issueToken signs a new HS256 token for userID and marks it active
func (s *Server) issueToken(userID int64) (string, error) {
	now := s.opts.Now()
	jti := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    "fundi-testserver",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	s.mu.Lock()
	s.activeTokens[jti] = userID
	s.mu.Unlock()
	return signed, nil
}

// parseToken verifies signature and expiry and returns the token id and subject
func (s *Server) parseToken(raw string) (string, int64, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.Now),
	)

	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.opts.SigningKey, nil
	}); err != nil {
		return "", 0, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return "", 0, errors.Wrap(err, "invalid subject")
	}
	return claims.ID, userID, nil
}

func (s *Server) revokeToken(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeTokens, jti)
}
