package auth

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type session struct {
	userID  int64
	expires time.Time
}

// MemSessions keeps sessions in process memory.
type MemSessions struct {
	mu       sync.Mutex
	sessions map[string]session
}

func NewMemSessions() *MemSessions {
	return &MemSessions{sessions: map[string]session{}}
}

func (s *MemSessions) Save(_ context.Context, id string, userID int64, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session{userID: userID, expires: expires}
	return nil
}

func (s *MemSessions) Lookup(_ context.Context, id string) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0, time.Time{}, ErrNoSession
	}
	return sess.userID, sess.expires, nil
}

func (s *MemSessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemSessions) DeleteForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// SQLSessions uses the sessions table created by db.Migrate.
type SQLSessions struct {
	db *sqlx.DB
}

func NewSQLSessions(db *sqlx.DB) *SQLSessions {
	return &SQLSessions{db: db}
}

func (s *SQLSessions) Save(ctx context.Context, id string, userID int64, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO sessions(id,user_id,expires_at) VALUES(?,?,?)`), id, userID, expires)
	return errors.Wrap(err, "save session")
}

func (s *SQLSessions) Lookup(ctx context.Context, id string) (int64, time.Time, error) {
	var row struct {
		UserID    int64     `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT user_id, expires_at FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, ErrNoSession
	} else if err != nil {
		return 0, time.Time{}, errors.Wrap(err, "lookup session")
	}
	return row.UserID, row.ExpiresAt, nil
}

func (s *SQLSessions) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return errors.Wrap(err, "delete session")
}

func (s *SQLSessions) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	return errors.Wrap(err, "delete user sessions")
}
