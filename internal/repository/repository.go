package repository

import (
	"context"
	"time"

	"anesthesia_controller/internal/models"
)

type Authorization interface {
	GetByUsername(username string) (*models.Operator, error)
}

type StatusRepo interface {
	Save(ctx context.Context, s models.Status) error
	Load(ctx context.Context) (models.Status, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.ControlEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.ControlEvent, error)
}

type Repository struct {
	StatusRepo StatusRepo
	EventRepo  EventRepo
	Auth       Authorization
}

// NewRepository builds the in-memory stores. Operators map usernames to
// passwords; plaintext passwords are hashed here.
func NewRepository(eventCapacity int, operators map[string]string) (*Repository, error) {
	auth, err := NewOperatorStore(operators)
	if err != nil {
		return nil, err
	}
	return &Repository{
		StatusRepo: NewStatusMemory(),
		EventRepo:  NewEventRing(eventCapacity),
		Auth:       auth,
	}, nil
}
