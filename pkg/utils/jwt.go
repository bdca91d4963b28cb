package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/transfer"
)

const linkStateTTL = 15 * time.Minute

func ValidateToken(secretKey, tokenString string) (*transfer.CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &transfer.CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if claims, ok := token.Claims.(*transfer.CustomClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GenerateLinkState builds the signed correlation token passed through the
// OAuth redirect round-trip as the state parameter.
func GenerateLinkState(secretKey string, userID, orgID int64, accountType string) (string, error) {
	nonce, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	claims := transfer.LinkStateClaims{
		UserID:      userID,
		OrgID:       orgID,
		AccountType: accountType,
		Nonce:       nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(linkStateTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "postbridge",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

// ValidateLinkState verifies and decodes a state parameter. Any malformed,
// forged or expired value comes back as ErrInvalidState.
func ValidateLinkState(secretKey, state string) (*transfer.LinkStateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &transfer.LinkStateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*transfer.LinkStateClaims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.Nonce == "" {
		return nil, apperr.ErrInvalidState
	}

	return claims, nil
}
