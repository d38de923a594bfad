package inmemdb

import (
	"context"
	"time"

	"github.com/umoja/academy/core/auth"
)

type sessionRepository struct {
	db *DB
}

var _ auth.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) auth.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s auth.Session) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.sessions[s.ID] = &s
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (auth.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return auth.Session{}, auth.ErrSessionNotFound
}

func (repo *sessionRepository) RevokeSession(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	s, ok := repo.db.sessions[id]
	if !ok {
		return auth.ErrSessionNotFound
	}
	s.RevokedAt.SetValid(at)
	return nil
}

func (repo *sessionRepository) FullName(_ context.Context, userID int) (string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.names[userID], nil
}
