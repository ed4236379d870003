package auth

import (
	"crypto/rsa"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryAPI looks staff up by email. A nil staff with a nil error means no such account.
type RepositoryAPI interface {
	GetStaffByEmail(email string) (staff *Staff, passwordHash string, err error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(staff *Staff) (string, error)
	GenerateRefreshToken(staff *Staff) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGeneratorAPI
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, tokenGen TokenGeneratorAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate checks staff credentials and issues an access/refresh pair.
func (s *Service) Authenticate(dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	staff, hash, err := s.repo.GetStaffByEmail(strings.ToLower(strings.TrimSpace(dto.Email)))
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("Failed to look up staff account", err)
	}
	if staff == nil {
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(dto.Password)); err != nil {
		s.logger.Warn("staff login rejected", "email", staff.Email)
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	return s.issue(staff)
}

// RefreshTokens trades a refresh token for a new pair. Permissions are
// reloaded so a config change takes effect on the next refresh.
func (s *Service) RefreshTokens(refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return AuthTokens{}, errors.ErrInvalidToken
	}

	staff, _, err := s.repo.GetStaffByEmail(claims.Email)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("Failed to look up staff account", err)
	}
	if staff == nil {
		return AuthTokens{}, errors.ErrInvalidToken
	}

	return s.issue(staff)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) issue(staff *Staff) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(staff)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("Failed to issue access token", err)
	}
	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(staff)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("Failed to issue refresh token", err)
	}
	return AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// JWTTokenGenerator signs RS256 tokens with the configured key pair.
type JWTTokenGenerator struct {
	PrivateKey      *rsa.PrivateKey
	PublicKey       *rsa.PublicKey
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Now             func() time.Time
}

func NewJWTTokenGenerator(private *rsa.PrivateKey, public *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenGenerator{
		PrivateKey:      private,
		PublicKey:       public,
		Issuer:          "sonlife-giving",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		Now:             time.Now,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(staff *Staff) (string, error) {
	return j.sign(staff, tokenTypeAccess, j.AccessTokenTTL)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(staff *Staff) (string, error) {
	return j.sign(staff, tokenTypeRefresh, j.RefreshTokenTTL)
}

func (j *JWTTokenGenerator) sign(staff *Staff, tokenType string, ttl time.Duration) (string, error) {
	now := j.Now()
	claims := &Claims{
		Email:     staff.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   staff.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if tokenType == tokenTypeAccess {
		claims.Name = staff.Name
		claims.Permissions = staff.Permissions
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.PrivateKey)
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.PublicKey, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithTimeFunc(j.Now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
