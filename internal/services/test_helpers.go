package services

import (
	"context"
	"strconv"

	"github.com/bastionhq/bastion/internal/models"
)

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	FindByCriteriaFunc func(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error)
	GetByIDFunc        func(ctx context.Context, id string) (*models.LoginAttempt, error)
	CreateFunc         func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	UpdateFunc         func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	DeleteFunc         func(ctx context.Context, id string) error
	DeleteByDomainFunc func(ctx context.Context, domain string) error
	DeleteExpiredFunc  func(ctx context.Context) (int64, error)
}

func (m *MockLoginAttemptStore) FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	if m.FindByCriteriaFunc != nil {
		return m.FindByCriteriaFunc(ctx, criteria)
	}
	return nil, models.ErrNotFound
}

func (m *MockLoginAttemptStore) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockLoginAttemptStore) Create(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, attempt)
	}
	return attempt, nil
}

func (m *MockLoginAttemptStore) Update(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, attempt)
	}
	return attempt, nil
}

func (m *MockLoginAttemptStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockLoginAttemptStore) DeleteByDomain(ctx context.Context, domain string) error {
	if m.DeleteByDomainFunc != nil {
		return m.DeleteByDomainFunc(ctx, domain)
	}
	return nil
}

func (m *MockLoginAttemptStore) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// InMemoryLoginAttemptStore is a map-backed store for coordinator tests
// that need real create/update/delete behavior.
type InMemoryLoginAttemptStore struct {
	records map[models.LoginAttemptCriteria]*models.LoginAttempt
	nextID  int
}

func NewInMemoryLoginAttemptStore() *InMemoryLoginAttemptStore {
	return &InMemoryLoginAttemptStore{
		records: make(map[models.LoginAttemptCriteria]*models.LoginAttempt),
	}
}

func (s *InMemoryLoginAttemptStore) keyOf(attempt *models.LoginAttempt) models.LoginAttemptCriteria {
	return models.LoginAttemptCriteria{
		Domain:           attempt.Domain,
		Client:           attempt.Client,
		IdentityProvider: attempt.IdentityProvider,
		Username:         attempt.Username,
	}
}

func (s *InMemoryLoginAttemptStore) FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	rec, ok := s.records[criteria]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *InMemoryLoginAttemptStore) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	for _, rec := range s.records {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *InMemoryLoginAttemptStore) Create(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	s.nextID++
	copied := *attempt
	copied.ID = "attempt_" + strconv.Itoa(s.nextID)
	s.records[s.keyOf(attempt)] = &copied
	out := copied
	return &out, nil
}

func (s *InMemoryLoginAttemptStore) Update(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	copied := *attempt
	s.records[s.keyOf(attempt)] = &copied
	out := copied
	return &out, nil
}

func (s *InMemoryLoginAttemptStore) Delete(ctx context.Context, id string) error {
	for key, rec := range s.records {
		if rec.ID == id {
			delete(s.records, key)
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *InMemoryLoginAttemptStore) DeleteByDomain(ctx context.Context, domain string) error {
	for key := range s.records {
		if key.Domain == domain {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *InMemoryLoginAttemptStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Len reports the number of stored records.
func (s *InMemoryLoginAttemptStore) Len() int {
	return len(s.records)
}
