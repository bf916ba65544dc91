package appstate

import (
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// Login makes u the session user and opens HOME. Only the public copy is kept.
func (s *State) Login(u domain.User) error {
	pub := u.Public()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = &pub
	s.screen = domain.ScreenHome
	if err := s.cols.SaveCurrentUser(&pub); err != nil {
		return err
	}
	logging.Get(logging.CategoryState).Infow("session started", "user", pub.ID, "admin", pub.IsAdmin)
	return s.cols.SaveCurrentScreen(s.screen)
}

// Logout drops the session keys. Cart, favorites and preferences stay.
func (s *State) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = nil
	s.selectedProduct = nil
	s.selectedOrder = nil
	s.screen = domain.ScreenAuth
	s.messages = nil
	return s.cols.ClearSession()
}

// Navigate switches screens. Admin screens fall back to HOME for non-admins
// and everything falls back to AUTH without a session. It returns the
// screen actually shown.
func (s *State) Navigate(to domain.Screen) (domain.Screen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.currentUser == nil:
		to = domain.ScreenAuth
	case to.IsAdminOnly() && !s.currentUser.IsAdmin:
		to = domain.ScreenHome
	}
	if to == s.screen {
		return to, nil
	}
	s.screen = to
	return to, s.cols.SaveCurrentScreen(to)
}

func (s *State) SetTheme(t domain.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = t
	return s.cols.SaveTheme(t)
}

func (s *State) SetLanguage(l domain.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = l
	return s.cols.SaveLanguage(l)
}

func (s *State) SetNotifications(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = on
	return s.cols.SaveNotificationsEnabled(on)
}

func (s *State) SetSounds(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounds = on
	return s.cols.SaveSoundsEnabled(on)
}

// AddMessage appends a chat line. The conversation is never persisted.
func (s *State) AddMessage(sender domain.Sender, text string) domain.ChatMessage {
	m := domain.ChatMessage{ID: uuid.NewString(), Text: text, Sender: sender, Timestamp: s.opts.Now()}
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return m
}

func (s *State) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}
