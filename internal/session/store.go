// Package session keeps analysed datasets in memory so the data, chat and
// export endpoints can refer back to them by ID.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

// Paging bounds.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
	DefaultTTL       = time.Hour
)

// Session is one stored analysis.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Dataset   *domain.CleanedDataset
	Report    *domain.AnalysisReport
}

// Page is one slice of a session's rows.
type Page struct {
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalRows  int          `json:"total_rows"`
	TotalPages int          `json:"total_pages"`
	Headers    []string     `json:"headers"`
	Data       []domain.Row `json:"data"`
}

// Store is an in-memory TTL store. Expired sessions are dropped lazily on
// access and whenever a new session is added.
type Store struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewStore creates a store whose sessions live for ttl after creation.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Put stores a dataset and its report. The session takes the report's ID
// when it has one (the pipeline run ID); otherwise a new ID is assigned and
// written back to the report.
func (s *Store) Put(ds *domain.CleanedDataset, report *domain.AnalysisReport) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)

	id := uuid.NewString()
	if report != nil && report.ID != "" {
		id = report.ID
	}
	sess := &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Dataset:   ds,
		Report:    report,
	}
	if report != nil {
		report.ID = sess.ID
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError("session " + id)
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.Delete(id)
		return nil, apperrors.NewNotFoundError("session " + id)
	}
	return sess, nil
}

// Delete removes a session. Unknown IDs are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len counts live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
	return len(s.sessions)
}

// Page returns rows [(page-1)*limit, page*limit). A page past the end is
// empty, not an error. Non-positive page or limit take the defaults.
func (s *Store) Page(id string, page, limit int) (*Page, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	rows := sess.Dataset.Rows
	total := len(rows)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Page{
		Page:       page,
		Limit:      limit,
		TotalRows:  total,
		TotalPages: (total + limit - 1) / limit,
		Headers:    sess.Dataset.Headers,
		Data:       append([]domain.Row{}, rows[start:end]...),
	}, nil
}

func (s *Store) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
