package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festiva/internal/config"
	"festiva/internal/models"
	"festiva/internal/utils"
)

type mockUserRepository struct {
	users  map[string]*models.User
	nextID int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*models.User), nextID: 1}
}

func (m *mockUserRepository) Create(email, name string, role models.UserRole, passwordHash string) (*models.User, error) {
	if _, exists := m.users[email]; exists {
		return nil, models.ErrDuplicateEmail
	}
	user := &models.User{ID: m.nextID, Email: email, Name: name, Role: role, PasswordHash: passwordHash}
	m.nextID++
	m.users[email] = user
	return user, nil
}

func (m *mockUserRepository) GetByID(id int) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func testAuthService() (*AuthService, *mockUserRepository) {
	repo := newMockUserRepository()
	return NewAuthService(repo, config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenLifetime: 1,
	}), repo
}

func TestAuthService_Register(t *testing.T) {
	service, repo := testAuthService()

	user, err := service.Register(&models.UserCreateRequest{
		Email:    "Jane@Example.com",
		Name:     "Jane Doe",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	// Email is normalized and the password stored hashed
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)

	stored := repo.users["jane@example.com"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "s3cret-password", stored.PasswordHash)
	ok, err := utils.VerifyPassword("s3cret-password", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthService_Register_AdminRoleDowngraded(t *testing.T) {
	service, _ := testAuthService()

	user, err := service.Register(&models.UserCreateRequest{
		Email:    "eve@example.com",
		Name:     "Eve",
		Password: "s3cret-password",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
}

func TestAuthService_Register_Invalid(t *testing.T) {
	service, _ := testAuthService()

	_, err := service.Register(&models.UserCreateRequest{
		Email:    "not-an-email",
		Name:     "Jane",
		Password: "s3cret-password",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = service.Register(&models.UserCreateRequest{
		Email:    "jane@example.com",
		Name:     "Jane",
		Password: "short",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAuthService_LoginAndValidateToken(t *testing.T) {
	service, _ := testAuthService()

	registered, err := service.Register(&models.UserCreateRequest{
		Email:    "jane@example.com",
		Name:     "Jane Doe",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	user, token, err := service.Login("jane@example.com", "s3cret-password")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	service, _ := testAuthService()

	_, err := service.Register(&models.UserCreateRequest{
		Email:    "jane@example.com",
		Name:     "Jane Doe",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, _, err = service.Login("jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, _, err = service.Login("nobody@example.com", "s3cret-password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_ValidateToken_Tampered(t *testing.T) {
	service, _ := testAuthService()

	_, err := service.Register(&models.UserCreateRequest{
		Email:    "jane@example.com",
		Name:     "Jane Doe",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, token, err := service.Login("jane@example.com", "s3cret-password")
	require.NoError(t, err)

	_, err = service.ValidateToken(token + "x")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// A token signed with another secret is rejected
	otherService := NewAuthService(newMockUserRepository(), config.AuthConfig{JWTSecret: "other-secret", TokenLifetime: 1})
	_, err = otherService.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
