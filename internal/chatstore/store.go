// Package chatstore keeps the client-side state of a direct-message
// conversation in sync with history fetches, local sends and pushed events.
package chatstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"dm-chat/internal/models"
	"dm-chat/internal/notify"
	"dm-chat/internal/transport"
)

// Gateway is the request/response side of the chat API.
type Gateway interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetMessages(ctx context.Context, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, receiverID string, req models.SendRequest) (models.Message, error)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to receive a snapshot after every committed
// change. Snapshots are delivered in commit order; fn must not call back
// into the Store's mutating methods.
func WithObserver(fn func(State)) Option {
	return func(s *Store) { s.observer = fn }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the reconciliation counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is the conversation state synchronizer. All methods are safe for
// concurrent use.
type Store struct {
	gateway  Gateway
	session  Session
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *Metrics

	mu    sync.Mutex
	state State

	usersInFlight    int
	messagesInFlight int

	// fetchSeq tags every history request; only the latest may commit.
	fetchSeq uint64
	// openSeq is the latest request while it is outstanding, zero otherwise.
	openSeq uint64
	// pending holds messages for pendingFor that arrived while openSeq was
	// outstanding; they are merged behind the fetched history.
	pendingFor string
	pending    []models.Message

	subMu      sync.Mutex
	subToken   uint64
	subscribed bool

	version uint64

	obsMu     sync.Mutex
	observer  func(State)
	delivered uint64
}

// New builds a Store. notifier may be nil, in which case notifications are
// only logged.
func New(gateway Gateway, session Session, notifier notify.Notifier, opts ...Option) *Store {
	s := &Store{
		gateway:  gateway,
		session:  session,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chatstore")
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// GetUsers loads the contact list.
func (s *Store) GetUsers(ctx context.Context) {
	s.mu.Lock()
	s.usersInFlight++
	s.state.IsUsersLoading = true
	snap, v := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)

	users, err := s.gateway.ListUsers(ctx)

	s.mu.Lock()
	s.usersInFlight--
	s.state.IsUsersLoading = s.usersInFlight > 0
	if err == nil {
		s.state.Users = append([]models.User(nil), users...)
	}
	snap, v = s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)

	if err != nil {
		s.logger.Error("fetch users", "error", err)
		s.notifier.Error(NotificationText(err, msgFetchUsersFailed))
	}
}

// GetMessages loads the history with userID and replaces the visible
// messages with it. A response is discarded if the selection changed while
// it was outstanding or a newer request was issued in the meantime. Messages
// for the same conversation that arrive while the request is outstanding are
// kept behind the history. Failures are notified even when discarded.
func (s *Store) GetMessages(ctx context.Context, userID string) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	issuedFor := s.state.SelectedUserID()
	if s.pendingFor != userID {
		s.pending = nil
	}
	s.pendingFor = userID
	s.openSeq = seq
	s.messagesInFlight++
	s.state.IsMessagesLoading = true
	snap, v := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)

	history, err := s.gateway.GetMessages(ctx, userID)

	s.mu.Lock()
	s.messagesInFlight--
	s.state.IsMessagesLoading = s.messagesInFlight > 0

	latest := seq == s.fetchSeq
	current := latest && s.state.SelectedUserID() == issuedFor
	var pending []models.Message
	if latest {
		pending = s.pending
		s.openSeq = 0
		s.pending = nil
		s.pendingFor = ""
	}
	if err == nil && current {
		merged := mergeHistory(history, pending)
		s.metrics.incAppended(sourceFetch, len(history))
		s.state.Messages = merged
	}
	snap, v = s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)

	if !current {
		s.metrics.incStale()
		s.logger.Debug("discard stale history", "user_id", userID, "seq", seq)
	}
	if err != nil {
		s.logger.Error("fetch messages", "user_id", userID, "error", err)
		s.notifier.Error(NotificationText(err, msgFetchMessagesFailed))
	}
}

// SendMessage sends payload to receiverID, or to the selected user when
// receiverID is empty, and appends the stored message to the open
// conversation. Errors are notified and returned.
func (s *Store) SendMessage(ctx context.Context, payload models.SendRequest, receiverID string) (models.Message, error) {
	if receiverID == "" {
		receiverID = s.State().SelectedUserID()
	}
	if receiverID == "" {
		s.notifier.Error(msgNoUserSelected)
		return models.Message{}, ErrNoRecipient
	}

	msg, err := s.gateway.SendMessage(ctx, receiverID, payload)
	if err != nil {
		s.logger.Error("send message", "receiver_id", receiverID, "error", err)
		s.notifier.Error(NotificationText(err, msgSendFailed))
		return models.Message{}, err
	}

	s.mu.Lock()
	if s.state.SelectedUserID() != receiverID {
		s.mu.Unlock()
		s.logger.Debug("send result for another conversation", "receiver_id", receiverID, "message_id", msg.ID)
		return msg, nil
	}
	if !s.appendLocked(msg, sourceSend) {
		s.mu.Unlock()
		return msg, nil
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)
	return msg, nil
}

// SubscribeToMessages installs the newMessage handler on the session's
// channel, replacing any handler installed before. It does nothing while no
// user is selected.
func (s *Store) SubscribeToMessages() {
	if s.State().SelectedUser == nil {
		return
	}
	ch := s.session.Channel()
	if ch == nil {
		s.logger.Error("socket not initialized")
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.mu.Lock()
	s.subToken++
	token := s.subToken
	s.subscribed = true
	s.mu.Unlock()
	ch.On(models.EventNewMessage, s.pushHandler(token))
}

// UnsubscribeFromMessages removes the newMessage handler. It is idempotent.
func (s *Store) UnsubscribeFromMessages() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.mu.Lock()
	s.subToken++
	s.subscribed = false
	s.mu.Unlock()
	if ch := s.session.Channel(); ch != nil {
		ch.Off(models.EventNewMessage)
	}
}

// SetSelectedUser assigns the selected partner. Callers that do not use
// SwitchConversation are expected to unsubscribe, select, fetch and
// subscribe in that order. Changing the partner clears the visible messages.
func (s *Store) SetSelectedUser(user *models.User) {
	s.mu.Lock()
	s.selectLocked(user)
	snap, v := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)
}

// SwitchConversation moves to user in one step: unsubscribe, select,
// subscribe and fetch. Subscribing first means pushes that land during the
// load are merged instead of lost. A nil user tears the conversation down.
func (s *Store) SwitchConversation(ctx context.Context, user *models.User) {
	s.UnsubscribeFromMessages()
	s.SetSelectedUser(user)
	if user == nil {
		return
	}
	s.SubscribeToMessages()
	s.GetMessages(ctx, user.ID)
}

// Close unsubscribes and stops observer delivery.
func (s *Store) Close() {
	s.UnsubscribeFromMessages()
	s.obsMu.Lock()
	s.observer = nil
	s.obsMu.Unlock()
}

func (s *Store) pushHandler(token uint64) transport.Handler {
	return func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("decode pushed message", "error", err)
			return
		}
		if !msg.HasContent() {
			s.logger.Warn("drop empty pushed message", "message_id", msg.ID)
			return
		}
		s.receive(token, msg)
	}
}

// receive evaluates a pushed message against the state at dispatch time.
func (s *Store) receive(token uint64, msg models.Message) {
	me := s.session.AuthUserID()

	s.mu.Lock()
	if !s.subscribed || token != s.subToken {
		s.mu.Unlock()
		return
	}
	if !msg.Between(me, s.state.SelectedUserID()) {
		s.mu.Unlock()
		s.metrics.incDropped()
		s.logger.Debug("drop pushed message", "message_id", msg.ID, "sender_id", msg.SenderID)
		return
	}
	if !s.appendLocked(msg, sourcePush) {
		s.mu.Unlock()
		return
	}
	snap, v := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap, v)
}

func (s *Store) selectLocked(user *models.User) {
	prev := s.state.SelectedUserID()
	if user == nil {
		s.state.SelectedUser = nil
	} else {
		u := *user
		s.state.SelectedUser = &u
	}
	if s.state.SelectedUserID() != prev {
		s.state.Messages = nil
		if s.pendingFor != s.state.SelectedUserID() {
			s.pending = nil
		}
	}
}

// appendLocked adds msg to the visible messages unless its id is present,
// and records it for merging when a history request is outstanding.
func (s *Store) appendLocked(msg models.Message, source string) bool {
	if s.openSeq != 0 && s.pendingFor == s.state.SelectedUserID() && !containsID(s.pending, msg.ID) {
		s.pending = append(s.pending, msg)
	}
	if containsID(s.state.Messages, msg.ID) {
		s.metrics.incDuplicate(source)
		return false
	}
	next := make([]models.Message, len(s.state.Messages), len(s.state.Messages)+1)
	copy(next, s.state.Messages)
	s.state.Messages = append(next, msg)
	s.metrics.incAppended(source, 1)
	return true
}

func (s *Store) commitLocked() (State, uint64) {
	s.version++
	return s.state.clone(), s.version
}

// publish delivers snap unless a newer snapshot was already delivered.
func (s *Store) publish(snap State, version uint64) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.observer == nil || version <= s.delivered {
		return
	}
	s.delivered = version
	s.observer(snap)
}

func mergeHistory(history, pending []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history)+len(pending))
	seen := make(map[string]struct{}, len(history)+len(pending))
	for _, list := range [][]models.Message{history, pending} {
		for _, m := range list {
			if m.ID != "" {
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
			}
			out = append(out, m)
		}
	}
	return out
}

func containsID(msgs []models.Message, id string) bool {
	if id == "" {
		return false
	}
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}
