// Package wishlist holds the saved products of one signed-in user, mirrored
// from the remote wishlists table with optimistic toggling.
package wishlist

import (
	"context"
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/store"
)

var (
	// ErrSignInRequired is returned by Toggle when no user is signed in.
	ErrSignInRequired = errors.New("wishlist: sign in required")
	// ErrTogglePending is returned when the product already has a toggle in flight.
	ErrTogglePending = errors.New("wishlist: toggle already in progress")
)

type toggleState int

const (
	idle toggleState = iota
	pendingAdd
	pendingRemove
)

// Store is the local view of one user's wishlist. The remote table is the
// source of truth; Load replaces the view with it.
type Store struct {
	mu      sync.Mutex
	remote  store.WishlistStorer
	userID  string
	members map[string]struct{}
	pending map[string]toggleState
	loaded  bool
	// epoch changes on sign-out so late remote results are ignored.
	epoch uint64
	log   logrus.FieldLogger
}

// New returns an empty, unloaded view for userID. An empty userID is the
// signed-out state.
func New(remote store.WishlistStorer, userID string, log logrus.FieldLogger) *Store {
	return &Store{
		remote:  remote,
		userID:  userID,
		members: map[string]struct{}{},
		pending: map[string]toggleState{},
		log:     log.WithField("component", "wishlist"),
	}
}

// Load refreshes the view from the remote table. Toggles still in flight are
// re-applied on top of the fetched rows.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return nil
	}

	ids, err := s.remote.ListWishlist(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(err, "wishlist: load")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil
	}
	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	for id, st := range s.pending {
		switch st {
		case pendingAdd:
			members[id] = struct{}{}
		case pendingRemove:
			delete(members, id)
		}
	}
	s.members = members
	s.loaded = true
	return nil
}

// Toggle flips membership of productID and reports the new membership. The
// view changes immediately and is rolled back if the remote write fails.
func (s *Store) Toggle(ctx context.Context, productID string) (bool, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return false, ErrSignInRequired
	}
	_, wasMember := s.members[productID]
	if s.pending[productID] != idle {
		s.mu.Unlock()
		return wasMember, ErrTogglePending
	}
	if wasMember {
		delete(s.members, productID)
		s.pending[productID] = pendingRemove
	} else {
		s.members[productID] = struct{}{}
		s.pending[productID] = pendingAdd
	}
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()

	var err error
	if wasMember {
		err = s.remote.RemoveWishlistItem(ctx, userID, productID)
	} else {
		err = s.remote.AddWishlistItem(ctx, userID, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false, err
	}
	delete(s.pending, productID)
	if err != nil {
		if wasMember {
			s.members[productID] = struct{}{}
		} else {
			delete(s.members, productID)
		}
		s.log.WithError(err).WithField("product_id", productID).Warn("wishlist toggle rolled back")
		if wasMember {
			return true, pkgerrors.Wrap(err, "wishlist: remove")
		}
		return false, pkgerrors.Wrap(err, "wishlist: add")
	}
	return !wasMember, nil
}

// IsMember is false for every product while signed out.
func (s *Store) IsMember(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[productID]
	return ok
}

func (s *Store) IsPending(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[productID] != idle
}

// Items returns the member product ids in sorted order.
func (s *Store) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SignOut clears the view. Remote calls still in flight no longer affect it.
func (s *Store) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.members = map[string]struct{}{}
	s.pending = map[string]toggleState{}
	s.loaded = false
	s.epoch++
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Loaded reports whether Load has succeeded since construction or sign-out.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
