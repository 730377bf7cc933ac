// Package server tracks live chat participants through the Registry type,
// which owns the participant set and keeps it in join order.
package server

import (
	"errors"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrAlreadyJoined signals a duplicate Join for a session that is
	// already registered. This is a caller bug, not a user-facing error.
	ErrAlreadyJoined = errors.New("session already joined")

	// ErrNotRegistered signals a Leave for an unknown session or a lookup
	// for a username with no live session. Both are recoverable.
	ErrNotRegistered = errors.New("session not registered")
)

// Participant is one live connection bound to the username it joined with.
type Participant struct {
	session  *Client
	username string
}

// Username returns the name the participant joined with.
func (p *Participant) Username() string {
	return p.username
}

// Registry is the set of live participants, kept in join order. Every
// mutating or iterating operation holds the lock, so a routing pass always
// works on a point-in-time copy that concurrent joins and leaves cannot
// touch.
type Registry struct {
	mu           sync.Mutex
	participants []*Participant
}

// NewRegistry creates an empty participant registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Join registers a participant for session. A session may be registered at
// most once; a second Join returns ErrAlreadyJoined.
func (r *Registry) Join(session *Client, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if p.session == session {
			return ErrAlreadyJoined
		}
	}

	r.participants = append(r.participants, &Participant{session: session, username: username})
	return nil
}

// Leave removes the participant for session and returns its username.
// Leaving a session that was never registered, or already removed, returns
// ErrNotRegistered; a disconnect observed twice is not fatal.
func (r *Registry) Leave(session *Client) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.participants {
		if p.session == session {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return p.username, nil
		}
	}
	return "", ErrNotRegistered
}

// Snapshot returns a point-in-time copy of the participant list in join
// order for one routing pass.
func (r *Registry) Snapshot() []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Participant(nil), r.participants...)
}

// FindByUsername returns the first participant that joined with name.
// Usernames are not unique: when two sessions share a name, the earlier
// join wins. Returns ErrNotRegistered when no live session has the name.
func (r *Registry) FindByUsername(name string) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, found := lo.Find(r.participants, func(p *Participant) bool {
		return p.username == name
	})
	if !found {
		return nil, ErrNotRegistered
	}
	return p, nil
}

// Len reports how many participants are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}
