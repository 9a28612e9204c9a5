package service

import (
	"errors"
	"fmt"
	"time"

	"ride-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenLeeway absorbs clock skew between the identity service and the ledger.
const tokenLeeway = 30 * time.Second

var errUnknownRole = errors.New("unknown role")

// callerClaims is the token body issued by the platform's identity service.
type callerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService with HS256 tokens. The ledger
// only validates tokens in production; Generate serves tooling and tests.
type JWTTokenService struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(tokenLeeway),
		),
	}
}

// Generate signs a token for userID acting as role.
func (s *JWTTokenService) Generate(userID uuid.UUID, role string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, callerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature, issuer and expiry and returns the caller.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims callerClaims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	switch claims.Role {
	case ports.RoleRider, ports.RoleDriver, ports.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w %q", errUnknownRole, claims.Role)
	}

	return &ports.TokenClaims{UserID: userID, Role: claims.Role}, nil
}
