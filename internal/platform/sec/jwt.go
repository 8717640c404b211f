// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, role
// folding) from the domain logic. The auth service and the HTTP middleware
// both depend on it; it depends on neither.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JorgeMataSaucedo/ProcBridge/pkg/uuidv7"
)

// ErrInvalidToken is returned for any access token that fails verification.
var ErrInvalidToken = errors.New("sec: invalid token")

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// The identity id, email, display name and role set travel inside the token so
// the middleware can reconstruct the caller without a database round-trip.
type AuthClaims struct {
	jwt.RegisteredClaims

	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// Subject is the identity an access token is minted for.
type Subject struct {
	ID    string
	Email string
	Name  string
	Roles []string
}

// TokenConfig selects the signing material. RS256 is used when both key paths
// are set; HS256 with Secret otherwise.
type TokenConfig struct {
	Secret         string
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
	Audience       string
}

// TokenOption customises a [TokenService].
type TokenOption func(*TokenService)

// WithTokenClock overrides the time source used for iat/exp and verification.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(service *TokenService) {
		if now != nil {
			service.now = now
		}
	}
}

// TokenService handles generation and verification of JWT access tokens.
type TokenService struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	now       func() time.Time
}

// NewTokenService creates a new TokenService from the configured key material.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	var service *TokenService

	switch {
	case cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "":
		priv, pub, err := loadRSAKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		service = &TokenService{method: jwt.SigningMethodRS256, signKey: priv, verifyKey: pub}

	case cfg.Secret != "":
		service = &TokenService{method: jwt.SigningMethodHS256, signKey: []byte(cfg.Secret), verifyKey: []byte(cfg.Secret)}

	default:
		return nil, errors.New("sec: no signing key material configured")
	}

	service.issuer = cfg.Issuer
	service.audience = cfg.Audience
	service.now = time.Now
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

func loadRSAKeys(privateKeyPath, publicKeyPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return privateKey, publicKey, nil
}

// GenerateAccessToken creates a signed access token for subject.
//
// # Returns
//   - The compact JWT string.
//   - The expiry instant embedded in the token.
func (service *TokenService) GenerateAccessToken(subject Subject, timeToLive time.Duration) (string, time.Time, error) {
	currentTime := service.now()
	expiresAt := currentTime.Add(timeToLive)

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidv7.New(),
			Subject:   subject.ID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: subject.ID,
		Email:  subject.Email,
		Name:   subject.Name,
		Roles:  append([]string{}, subject.Roles...),
	}
	if service.audience != "" {
		claims.Audience = jwt.ClaimStrings{service.audience}
	}

	token := jwt.NewWithClaims(service.method, claims)
	signedToken, err := token.SignedString(service.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// VerifyToken checks the signature, issuer, audience and expiry of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{service.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	}
	if service.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(service.issuer))
	}
	if service.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(service.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(*jwt.Token) (any, error) {
		return service.verifyKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
