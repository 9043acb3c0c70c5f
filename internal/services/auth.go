package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"festiva/internal/config"
	"festiva/internal/models"
	"festiva/internal/utils"
)

// UserRepository is the slice of the user repository the auth workflow needs
type UserRepository interface {
	Create(email, name string, role models.UserRole, passwordHash string) (*models.User, error)
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// TokenClaims are the JWT claims issued on login
type TokenClaims struct {
	UserID int             `json:"uid"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles registration, login and token validation
type AuthService struct {
	users  UserRepository
	config config.AuthConfig
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		users:  users,
		config: cfg,
	}
}

// Register creates a new user account. New accounts default to the customer
// role; elevated roles are assigned out of band.
func (s *AuthService) Register(req *models.UserCreateRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	role := req.Role
	if role == "" || role == models.RoleAdmin {
		role = models.RoleCustomer
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.users.Create(strings.ToLower(strings.TrimSpace(req.Email)), strings.TrimSpace(req.Name), role, hash)
}

// Login verifies credentials and returns the user with a signed token
func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, "", models.ErrUnauthorized
		}
		return nil, "", err
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, "", models.ErrUnauthorized
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// ValidateToken parses and verifies a token, returning its claims
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.config.TokenLifetime) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
