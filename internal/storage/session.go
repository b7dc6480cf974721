package storage

import (
	"sync"
	"time"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

// QuizSession is one user's in-flight wrong-answer quiz. Sessions are
// process-local; restarting the service discards them, which only costs the
// user a regenerated quiz.
type QuizSession struct {
	UserID    int64
	Items     []*entities.WrongAnswerQuizItem
	Position  int
	CreatedAt time.Time
}

// Current returns the question the user is on, or nil when the quiz is done.
func (s *QuizSession) Current() *entities.WrongAnswerQuizItem {
	if s.Position < 0 || s.Position >= len(s.Items) {
		return nil
	}
	return s.Items[s.Position]
}

// Done reports whether every question has been answered.
func (s *QuizSession) Done() bool {
	return s.Position >= len(s.Items)
}

// QuizSessionStore keeps at most one active quiz session per user.
type QuizSessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*QuizSession
}

func NewQuizSessionStore() *QuizSessionStore {
	return &QuizSessionStore{sessions: make(map[int64]*QuizSession)}
}

// Set replaces the user's session with a fresh one.
func (s *QuizSessionStore) Set(userID int64, items []*entities.WrongAnswerQuizItem, now time.Time) *QuizSession {
	session := &QuizSession{
		UserID:    userID,
		Items:     items,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()

	return session
}

// Get returns the user's active session, if any.
func (s *QuizSessionStore) Get(userID int64) (*QuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

// Advance moves the user's session to the next question and reports whether
// the quiz still has questions left.
func (s *QuizSessionStore) Advance(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return false
	}
	session.Position++
	if session.Done() {
		delete(s.sessions, userID)
		return false
	}
	return true
}

// Clear drops the user's session.
func (s *QuizSessionStore) Clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}
