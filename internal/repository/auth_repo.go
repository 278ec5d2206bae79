package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"anesthesia_controller/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var errEmptyCredentials = errors.New("operator username and password are required")

// OperatorStore is the read-only operator list loaded from configuration.
type OperatorStore struct {
	byName map[string]models.Operator
}

// Ensure implementation of Authorization interface at compile time.
var _ Authorization = (*OperatorStore)(nil)

// NewOperatorStore hashes plaintext passwords with bcrypt. Values that are
// already bcrypt hashes are stored as is. IDs follow username order.
func NewOperatorStore(credentials map[string]string) (*OperatorStore, error) {
	names := make([]string, 0, len(credentials))
	for name := range credentials {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &OperatorStore{byName: make(map[string]models.Operator, len(names))}
	for i, name := range names {
		hash, err := passwordHash(name, credentials[name])
		if err != nil {
			return nil, err
		}
		s.byName[name] = models.Operator{ID: i + 1, Username: name, PasswordHash: hash}
	}
	return s, nil
}

func passwordHash(username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("operator %q: %w", username, errEmptyCredentials)
	}
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return password, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password for operator %q: %w", username, err)
	}
	return string(hash), nil
}

// GetByUsername fetches an operator by username. Returns (nil, nil) if not found.
func (s *OperatorStore) GetByUsername(username string) (*models.Operator, error) {
	op, ok := s.byName[username]
	if !ok {
		return nil, nil
	}
	return &op, nil
}
