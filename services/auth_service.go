package services

import (
	goerrors "errors"
	"fmt"
	"log/slog"
	"secure-chat/auth"
	"secure-chat/errors"
	"secure-chat/repositories"
	"time"
)

// AuthService decides whether a LOGIN_REQUEST may proceed and issues the
// session token returned in the LOGIN_RESPONSE.
//
// In open mode the credential is ignored and any free username is accepted.
// With credentials required, the credential is checked against the stored
// Argon2id hash; unknown users are registered on the spot when autoRegister
// is set.
type AuthService struct {
	log                *slog.Logger
	userRepository     repositories.IUserRepository
	tokenKey           []byte
	tokenTTL           time.Duration
	requireCredentials bool
	autoRegister       bool
}

func NewAuthService(log *slog.Logger,
	repo repositories.IUserRepository,
	tokenKey []byte,
	tokenTTL time.Duration,
	requireCredentials, autoRegister bool) *AuthService {
	return &AuthService{
		log:                log,
		userRepository:     repo,
		tokenKey:           tokenKey,
		tokenTTL:           tokenTTL,
		requireCredentials: requireCredentials,
		autoRegister:       autoRegister,
	}
}

// Authenticate returns a signed token for username. A refused login is
// always errors.ErrInvalidCredentials, whatever the cause, so callers cannot
// tell unknown users from wrong passwords.
func (s *AuthService) Authenticate(username, credential string) (string, error) {
	if s.requireCredentials {
		if err := s.verify(username, credential); err != nil {
			return "", err
		}
	}

	token, err := auth.GenerateToken(s.tokenKey, username, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return token, nil
}

func (s *AuthService) verify(username, credential string) error {
	user, err := s.userRepository.GetUser(username)
	switch {
	case err == nil:
		return compare(credential, user.PasswordHash)
	case goerrors.Is(err, errors.ErrUserNotFound) && s.autoRegister:
		return s.register(username, credential)
	case goerrors.Is(err, errors.ErrUserNotFound):
		return errors.ErrInvalidCredentials
	default:
		return fmt.Errorf("user lookup failed: %w", err)
	}
}

func (s *AuthService) register(username, credential string) error {
	// Validate before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: credential}); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}

	hashedPassword, err := auth.HashPassword(credential)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	err = s.userRepository.CreateUser(username, hashedPassword)
	if goerrors.Is(err, errors.ErrUserAlreadyExists) {
		// Lost a race against another first login: check against the winner
		user, err := s.userRepository.GetUser(username)
		if err != nil {
			return fmt.Errorf("user lookup failed: %w", err)
		}
		return compare(credential, user.PasswordHash)
	}
	if err != nil {
		return err
	}

	s.log.Info("Account created", "username", username)
	return nil
}

func compare(credential, hash string) error {
	match, err := auth.ComparePassword(credential, hash)
	if err != nil || !match {
		return errors.ErrInvalidCredentials
	}
	return nil
}
