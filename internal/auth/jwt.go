package auth

import (
	"context"
	"errors"
	"time"

	"Chatline/internal/apperror"

	"github.com/golang-jwt/jwt/v4"
)

// Verifier turns a client credential into a user identity.
type Verifier interface {
	VerifyIdentity(ctx context.Context, credential string) (string, error)
}

// Claims carries the user id under the same claim name the user service signs with.
type Claims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// JWT verifies HS256 access tokens issued by the user service.
type JWT struct {
	secretKey []byte
	ttl       time.Duration
}

func NewJWT(secretKey string, ttl time.Duration) *JWT {
	return &JWT{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// GenerateToken signs an access token for userID. The chat server never issues
// tokens to clients; this exists for tooling and tests.
func (j *JWT) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWT) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (j *JWT) VerifyIdentity(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", apperror.Unauthorized("Token is required!")
	}

	claims, err := j.ValidateToken(credential)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", apperror.Wrap(apperror.KindUnauthorized, err, "Access token has expired.")
		}
		return "", apperror.Wrap(apperror.KindUnauthorized, err, "User not authorized!")
	}
	if claims.UserID == "" {
		return "", apperror.Unauthorized("User not authorized!")
	}
	return claims.UserID, nil
}
