package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/pkg/jwt"
	"github.com/insightloop/reportd/internal/repository"
)

// Auth registers and authenticates report owners.
type Auth struct {
	store  *repository.Store
	tokens *jwt.Manager
}

// NewAuth creates the auth service
func NewAuth(store *repository.Store, tokens *jwt.Manager) *Auth {
	return &Auth{store: store, tokens: tokens}
}

// Register creates a new user and returns a bearer token
func (a *Auth) Register(username, password, email string) (*model.TokenResponse, error) {
	userID, err := a.store.CreateUser(username, hashPassword(password), email)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperr.Conflictf("username %q already exists", username)
		}
		return nil, err
	}

	token, err := a.tokens.Generate(userID, username)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User: &model.UserInfo{
			ID:       userID,
			Username: username,
			Email:    email,
		},
	}, nil
}

// Login authenticates a user and returns a bearer token
func (a *Auth) Login(username, password string) (*model.TokenResponse, error) {
	user, err := a.store.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash != hashPassword(password) {
		return nil, apperr.Authf("invalid username or password")
	}

	token, err := a.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User: &model.UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	}, nil
}

// GetUser returns a user by id
func (a *Auth) GetUser(userID int64) (*model.User, error) {
	user, err := a.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFoundf("user %d not found", userID)
	}
	return user, nil
}

func hashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}
