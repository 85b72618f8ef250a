package app

import (
	"sync"
	"time"

	"order-workflow/internal/authz"
	"order-workflow/internal/model"
	"order-workflow/internal/session"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// NotificationKind は通知の種類
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification は一時的な通知
type Notification struct {
	Kind    NotificationKind
	Message string
	At      time.Time
}

// Filter は注文一覧の絞り込み条件（管理者のみステージを選べる）
type Filter struct {
	Stage    *int
	Priority model.Priority
	Search   string
}

// State はログイン中のアプリケーション状態。ログアウトでClose()される
type State struct {
	mu sync.RWMutex

	identity model.Identity
	view     authz.View
	filter   Filter

	orders   []model.Order
	history  []model.HistoryRecord
	users    []model.User
	carriers []model.User
	log      []model.ActivityLogEntry

	notification *Notification
	notifySeq    uint64
	notifyTTL    time.Duration
	timer        *time.Timer
	closed       bool
}

// NewState creates the state of a freshly authenticated session.
func NewState(s *session.Session) *State {
	return &State{
		identity:  s.Identity,
		view:      authz.DefaultView,
		notifyTTL: DefaultNotificationTTL,
	}
}

// Close drops every collection. A closed state accepts no further updates.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders, s.history, s.users, s.carriers, s.log = nil, nil, nil, nil, nil
	s.notification = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.closed = true
}

// Closed reports whether the session behind the state has ended.
func (s *State) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *State) Identity() model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *State) View() authz.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *State) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Orders returns a copy of the active orders.
func (s *State) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.orders))
	for i := range s.orders {
		out[i] = *s.orders[i].Clone()
	}
	return out
}

func (s *State) History() []model.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.HistoryRecord{}, s.history...)
}

func (s *State) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User{}, s.users...)
}

func (s *State) Carriers() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User{}, s.carriers...)
}

func (s *State) Log() []model.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ActivityLogEntry{}, s.log...)
}

// Notification returns the notification on screen, if any.
func (s *State) Notification() (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.notification == nil {
		return Notification{}, false
	}
	return *s.notification, true
}

// order returns a copy of the active order with id.
func (s *State) order(id string) (*model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			return s.orders[i].Clone(), true
		}
	}
	return nil, false
}

func (s *State) carrier(id string) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.carriers {
		if s.carriers[i].ID == id {
			u := s.carriers[i]
			return &u
		}
	}
	return nil
}

func (s *State) update(fn func(s *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn(s)
}

// notify shows n, replacing any current notification, and dismisses it after the TTL.
func (s *State) notify(kind NotificationKind, message string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.notifySeq++
	seq := s.notifySeq
	s.notification = &Notification{Kind: kind, Message: message, At: now}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.notifyTTL, func() { s.dismiss(seq) })
}

func (s *State) dismiss(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifySeq == seq {
		s.notification = nil
	}
}
