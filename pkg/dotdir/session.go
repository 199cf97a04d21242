package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/hrdesk/pkg/roles"
)

const (
	sessionFile = "session.json"
)

// Session is the principal the CLI acts as until it is cleared. The
// user-management service owns identities; this only remembers the one it
// last vouched for.
type Session struct {
	UserID string     `json:"user_id"`
	Role   roles.Role `json:"role"`

	// TeamLead is the user ID of the principal's team lead, if any.
	TeamLead string `json:"team_lead,omitempty"`
}

// Principal converts the session into the authorization principal.
func (s *Session) Principal() roles.Principal {
	return roles.Principal{UserID: s.UserID, Role: s.Role, TeamLead: s.TeamLead}
}

// LoadSession loads .hrdesk/session.json.
// Returns nil, nil if no session has been saved.
func (m *Manager) LoadSession(overrideDir string) (*Session, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	if s.UserID == "" {
		return nil, errors.New("parsing session: user_id is empty")
	}

	return s, nil
}

// SaveSession persists s to .hrdesk/session.json.
func (m *Manager) SaveSession(s *Session, overrideDir string) error {
	if s == nil {
		return errors.New("cannot save nil session")
	}
	if s.UserID == "" {
		return errors.New("cannot save session without a user ID")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}

// ClearSession removes the session file. Returns nil if there was none.
func (m *Manager) ClearSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, sessionFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session: %w", err)
	}

	return nil
}
