// Package session records the activity updates the core pushes to the
// plugin's session_url. A real plugin would use these to keep an upstream
// identity-provider session alive; the test plugin stores them so
// integration tests can assert they were delivered.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verder-helpen/auth-test/internal/dto"
)

// Update is a single recorded session activity notification.
type Update struct {
	ID         string              `json:"id"`
	Activity   dto.SessionActivity `json:"activity"`
	ReceivedAt time.Time           `json:"receivedAt"`
}

// Repository persists session updates.
type Repository interface {
	Append(ctx context.Context, update Update) error
	List(ctx context.Context) ([]Update, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock implementation backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Service records and lists session updates.
type Service struct {
	repo  Repository
	clock Clock
}

// NewService wires a Service from its dependencies.
func NewService(repo Repository, clock Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// Record stores an activity notification and returns the stored update.
func (s *Service) Record(ctx context.Context, activity dto.SessionActivity) (Update, error) {
	update := Update{
		ID:         uuid.NewString(),
		Activity:   activity,
		ReceivedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Append(ctx, update); err != nil {
		return Update{}, err
	}
	return update, nil
}

// Updates returns every recorded update in arrival order.
func (s *Service) Updates(ctx context.Context) ([]Update, error) {
	return s.repo.List(ctx)
}
