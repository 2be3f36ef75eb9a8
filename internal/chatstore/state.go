package chatstore

import "dm-chat/internal/models"

// State is the observable conversation state. Messages always belong to the
// conversation with SelectedUser.
type State struct {
	Messages          []models.Message
	Users             []models.User
	SelectedUser      *models.User
	IsUsersLoading    bool
	IsMessagesLoading bool
}

func (s State) clone() State {
	out := s
	if s.Messages != nil {
		out.Messages = append([]models.Message(nil), s.Messages...)
	}
	if s.Users != nil {
		out.Users = append([]models.User(nil), s.Users...)
	}
	if s.SelectedUser != nil {
		u := *s.SelectedUser
		out.SelectedUser = &u
	}
	return out
}

// SelectedUserID returns the id of the selected partner, or "" when idle.
func (s State) SelectedUserID() string {
	if s.SelectedUser == nil {
		return ""
	}
	return s.SelectedUser.ID
}
