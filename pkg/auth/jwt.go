package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrExpiredToken        = errors.New("auth: token has expired")
	ErrTokenSigningFailed  = errors.New("auth: failed to sign token")
	ErrInvalidSecretLength = errors.New("auth: JWT secret must be at least 32 characters")
)

// Claims identifies a device to the controller on the CLOUD_CON path,
// carrying the device/network identity the authentication frame
// otherwise sends in the clear.
type Claims struct {
	jwt.RegisteredClaims
	DeviceName  string `json:"device_name"`
	NetworkName string `json:"network_name"`
	DeviceNr    uint32 `json:"device_nr"`
}

// JWTConfig configures token issuance and verification.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// JWTService issues and verifies device identity tokens for CLOUD_CON.
type JWTService struct {
	config JWTConfig
}

// NewJWTService validates config and returns a ready JWTService.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "iocom"
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = time.Hour
	}
	return &JWTService{config: config}, nil
}

// IssueToken signs a device-identity token for deviceName/networkName.
func (s *JWTService) IssueToken(deviceName, networkName string, deviceNr uint32) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   deviceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
		DeviceName:  deviceName,
		NetworkName: networkName,
		DeviceNr:    deviceNr,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}

// VerifyToken parses and validates tokenString, returning its claims.
func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
