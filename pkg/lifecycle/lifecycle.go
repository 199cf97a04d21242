// Package lifecycle removes documents and members on behalf of an authorized
// principal.
//
// Indexed documents have no expiry. They stay queryable until an HR Executive
// or HR Manager deletes them here, which removes every chunk at once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/eventstream"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/nop"
	"github.com/papercomputeco/hrdesk/pkg/keylock"
	"github.com/papercomputeco/hrdesk/pkg/retry"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/storage"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// ErrNoMemberStore is returned by RemoveMember when no user-management
// collaborator is configured.
var ErrNoMemberStore = errors.New("no member store configured")

// MemberStore is the user-management collaborator that owns member records.
type MemberStore interface {
	RemoveMember(ctx context.Context, userID string) error
}

// Config wires the manager to its collaborators.
type Config struct {
	Store   storage.Driver
	Vectors vector.Driver

	// Members is optional. Without it RemoveMember still authorizes but
	// returns ErrNoMemberStore.
	Members MemberStore

	Publisher eventstream.Publisher

	// Locks must be the locker the ingestion pipeline uses.
	Locks *keylock.Locker

	Retry  retry.Policy
	Logger *slog.Logger
}

// Manager deletes documents and members.
type Manager struct {
	store     storage.Driver
	vectors   vector.Driver
	members   MemberStore
	publisher eventstream.Publisher
	locks     *keylock.Locker
	retry     retry.Policy
	logger    *slog.Logger
}

// New builds a Manager.
func New(c *Config) (*Manager, error) {
	if c.Store == nil || c.Vectors == nil {
		return nil, errors.New("lifecycle manager requires a store and a vector driver")
	}

	m := &Manager{
		store:     c.Store,
		vectors:   c.Vectors,
		members:   c.Members,
		publisher: c.Publisher,
		locks:     c.Locks,
		retry:     c.Retry,
		logger:    c.Logger,
	}
	if m.publisher == nil {
		m.publisher = nop.NewPublisher()
	}
	if m.locks == nil {
		m.locks = keylock.New()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// Delete permanently removes a document and every one of its chunks. It waits
// for any in-flight ingestion of the same document. Chunks left behind by a
// lost registry record are still removed; a document unknown to both the
// registry and the index is reported as not found.
func (m *Manager) Delete(ctx context.Context, actor roles.Principal, documentID string) error {
	if !roles.CanDeleteDocument(actor.Role) {
		return errdefs.PermissionDenied(actor.Role.String(), "delete documents")
	}
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document ID is empty", errdefs.ErrInvalidInput)
	}

	unlock, err := m.locks.Lock(ctx, documentID)
	if err != nil {
		return fmt.Errorf("waiting for document %s: %w", documentID, err)
	}
	defer unlock()

	log := m.logger.With("document_id", documentID, "actor", actor.UserID)

	doc, err := m.store.Get(ctx, documentID)
	switch {
	case errors.Is(err, errdefs.ErrNotFound):
		doc = nil
	case err != nil:
		return fmt.Errorf("looking up document %s: %w", documentID, err)
	}

	if doc == nil {
		entries, err := retry.Value(ctx, m.retry, "list document chunks", m.logger, func(ctx context.Context) ([]vector.Entry, error) {
			return m.vectors.ListDocument(ctx, documentID)
		})
		if err != nil {
			return fmt.Errorf("listing chunks of %s: %w", documentID, err)
		}
		if len(entries) == 0 {
			return storage.NotFoundError{ID: documentID}
		}
		log.Warn("removing chunks of a document with no registry record", "chunks", len(entries))
	}

	err = retry.Do(ctx, m.retry, "delete document chunks", m.logger, func(ctx context.Context) error {
		return m.vectors.DeleteByDocument(ctx, documentID)
	})
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}

	if doc != nil {
		if err := m.store.Delete(ctx, documentID); err != nil && !errors.Is(err, errdefs.ErrNotFound) {
			return fmt.Errorf("deleting record of %s: %w", documentID, err)
		}
	} else {
		doc = &document.Document{ID: documentID}
	}

	log.Info("document deleted", "filename", doc.Filename)

	ev := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, actor.UserID, actor.Role.Slug(), doc)
	if err := m.publisher.Publish(ctx, ev); err != nil {
		log.Warn("publishing document event", "event_type", ev.EventType, "error", err)
	}
	return nil
}

// RemoveMember authorizes actor to remove target and delegates the removal to
// the member store. A refused request touches nothing.
func (m *Manager) RemoveMember(ctx context.Context, actor, target roles.Principal) error {
	if !roles.CanDelete(actor, target) {
		return errdefs.PermissionDenied(actor.Role.String(), "remove "+target.Role.String()+" "+target.UserID)
	}
	if m.members == nil {
		return ErrNoMemberStore
	}

	if err := m.members.RemoveMember(ctx, target.UserID); err != nil {
		return fmt.Errorf("removing member %s: %w", target.UserID, err)
	}

	m.logger.Info("member removed", "actor", actor.UserID, "target", target.UserID, "target_role", target.Role.Slug())
	return nil
}
