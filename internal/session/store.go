package session

import "sync"

// Session is the single authoritative record of who is at the kiosk and how
// they seem to feel. IsLoggedIn is true exactly when UserID is set.
type Session struct {
	UserID       *int   `json:"user_id"`
	UserName     string `json:"user_name"`
	DetectedMood string `json:"detected_mood"`
	IsLoggedIn   bool   `json:"is_logged_in"`
}

func Anonymous() Session {
	return Session{}
}

// Reader is the read-only view handed to everything except the journey.
type Reader interface {
	Current() Session
}

// Store holds the current session. The journey is its only writer.
type Store struct {
	mu         sync.RWMutex
	current    Session
	generation uint64
}

func NewStore() *Store {
	return &Store{current: Anonymous()}
}

// Login overwrites every field unconditionally.
func (s *Store) Login(userID int, userName, mood string) {
	id := userID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{
		UserID:       &id,
		UserName:     userName,
		DetectedMood: mood,
		IsLoggedIn:   true,
	}
	s.generation++
}

// Logout resets to the anonymous default. It never fails.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Anonymous()
	s.generation++
}

func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.current
	if out.UserID != nil {
		id := *out.UserID
		out.UserID = &id
	}
	return out
}

// Generation increases on every write. Callers holding an older value know
// the session changed underneath them.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
