// Package server routes chat traffic between live participants and the
// durable history log via the Router type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/parley-chat/parley/internal/history"
)

// Router fans chat messages out to live participants and sequences them
// against history writes. Every exported operation runs as a single critical
// section: concurrent calls from different session handlers are linearized,
// so each recipient sees messages in the order they arrived at the Router,
// and a recorded message is durable before any participant can see it.
type Router struct {
	mu       sync.Mutex
	registry *Registry
	store    history.Store
	wg       sync.WaitGroup
}

// NewRouter creates a Router over the given registry and history store.
func NewRouter(registry *Registry, store history.Store) *Router {
	return &Router{
		registry: registry,
		store:    store,
	}
}

// Registry exposes the participant registry for read-side inspection.
func (rt *Router) Registry() *Registry {
	return rt.registry
}

// StartSession launches the read and write pumps for a newly upgraded
// connection. The session announces its own join from the read pump.
func (rt *Router) StartSession(client *Client) {
	log.Printf("Session %s connected from %s as %q", client.id, client.addr, client.username)

	rt.wg.Add(2)
	go func() {
		defer rt.wg.Done()
		client.writePump()
	}()
	go func() {
		defer rt.wg.Done()
		client.readPump()
	}()
}

var chatRouter = NewRouter(NewRegistry(), history.NewMemoryStore())

// ConfigureRouter installs a fresh router backed by the given history store.
// Call it before the server starts accepting connections; the default
// router keeps history in memory only.
func ConfigureRouter(store history.Store) {
	chatRouter = NewRouter(NewRegistry(), store)
}

// GetRouter returns the active router for shutdown coordination.
func GetRouter() *Router {
	return chatRouter
}

// AnnounceJoin registers the session under username, broadcasts the join
// announcement to every participant including the joiner, then replays the
// full message history to the joiner only. All of it happens inside one
// critical section, so no live broadcast can land between the announcement
// and the replay.
func (rt *Router) AnnounceJoin(ctx context.Context, session *Client, username string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.registry.Join(session, username); err != nil {
		return err
	}

	rt.fanOut(formatJoinLine(username))

	records, err := rt.store.ListAll(ctx)
	if err != nil {
		// The participant is live either way; they just start without
		// backlog.
		log.Printf("History replay for %q failed: %v", username, err)
		return nil
	}

	lines := lo.Map(records, func(rec history.Record, _ int) string {
		return formatChatLine(rec.Username, rec.Message)
	})
	for _, line := range lines {
		rt.deliver(session, username, line)
	}
	return nil
}

// AnnounceLeave removes the session from the registry and, if it was
// registered, broadcasts the leave announcement to the remaining
// participants. A session that already left is absorbed silently. The
// session's outbound queue is closed here in both cases.
func (rt *Router) AnnounceLeave(session *Client) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	username, err := rt.registry.Leave(session)
	session.closeSend()
	if err != nil {
		return
	}

	log.Printf("Session %s (%q) left. Remaining participants: %d", session.id, username, rt.registry.Len())
	rt.fanOut(formatLeaveLine(username))
}

// Broadcast delivers text verbatim to every registered participant.
func (rt *Router) Broadcast(text string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fanOut(text)
}

// SendPrivate delivers a directed message to the first participant
// registered under toUsername. An unknown recipient drops the message
// without feedback to the sender, matching the baseline behaviour.
func (rt *Router) SendPrivate(fromUsername, toUsername, text string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	p, err := rt.registry.FindByUsername(toUsername)
	if err != nil {
		log.Printf("Private message from %q to unknown user %q dropped", fromUsername, toUsername)
		return
	}
	rt.deliver(p.session, p.username, formatPrivateLine(fromUsername, text))
}

// RecordAndBroadcast appends the message to the history store and then
// broadcasts it. Persistence happens before delivery: a message no
// participant can see yet is never durable-after-visible. When the append
// fails the broadcast is skipped so the invariant holds; the line is lost
// for everyone, sender included.
func (rt *Router) RecordAndBroadcast(ctx context.Context, username, text string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.store.Append(ctx, history.Record{Username: username, Message: text}); err != nil {
		log.Printf("Dropping message from %q: history append failed: %v", username, err)
		return
	}
	rt.fanOut(formatChatLine(username, text))
}

// sendSystem delivers a line to one session only, outside any broadcast.
// Used for local protocol feedback such as malformed private commands.
func (rt *Router) sendSystem(session *Client, text string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.deliver(session, session.username, text)
}

// fanOut delivers text to every participant in the current snapshot.
// Callers must hold rt.mu. A failed recipient never aborts the pass.
func (rt *Router) fanOut(text string) {
	for _, p := range rt.registry.Snapshot() {
		rt.deliver(p.session, p.username, text)
	}
}

// deliver enqueues one line for a single session. On failure the session's
// connection is closed so its own read pump unblocks and drives the leave;
// the broadcaster never force-removes another participant. Callers must
// hold rt.mu.
func (rt *Router) deliver(session *Client, username string, text string) {
	if session.enqueue(text) {
		return
	}
	log.Printf("Failed to deliver to session %s (%q); closing its connection", session.id, username)
	session.closeConn()
}

// Shutdown closes every live connection and waits for the session pumps to
// finish, or until the timeout is reached.
func (rt *Router) Shutdown(timeout time.Duration) error {
	log.Println("Closing all chat sessions...")

	participants := rt.registry.Snapshot()
	for _, p := range participants {
		p.session.closeConn()
	}
	log.Printf("Closed %d chat sessions", len(participants))

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Router shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Router shutdown timeout reached, some session goroutines may still be running")
		return context.DeadlineExceeded
	}
}
