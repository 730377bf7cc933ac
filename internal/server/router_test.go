package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/history"
)

// drainLines empties a session's outbound queue without blocking and
// returns the queued lines in delivery order.
func drainLines(c *Client) []string {
	var lines []string
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return lines
			}
			lines = append(lines, string(msg))
		default:
			return lines
		}
	}
}

func newTestRouter() (*Router, *history.MemoryStore) {
	store := history.NewMemoryStore()
	return NewRouter(NewRegistry(), store), store
}

func TestAnnounceJoinBroadcastsToEveryoneIncludingJoiner(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))

	bob := newTestClient("bob")
	require.NoError(t, rt.AnnounceJoin(ctx, bob, "bob"))

	assert.Equal(t, []string{"alice joined the chat", "bob joined the chat"}, drainLines(alice))
	assert.Equal(t, []string{"bob joined the chat"}, drainLines(bob))
}

func TestAnnounceJoinRejectsDuplicateSession(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))

	err := rt.AnnounceJoin(ctx, alice, "alice")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestAnnounceJoinReplaysHistoryAfterJoinLine(t *testing.T) {
	rt, store := newTestRouter()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, history.Record{Username: "alice", Message: "hi"}))
	require.NoError(t, store.Append(ctx, history.Record{Username: "bob", Message: "hello"}))

	carol := newTestClient("carol")
	require.NoError(t, rt.AnnounceJoin(ctx, carol, "carol"))

	assert.Equal(t, []string{
		"carol joined the chat",
		"alice: hi",
		"bob: hello",
	}, drainLines(carol))
}

func TestRecordAndBroadcastPersistsBeforeDelivery(t *testing.T) {
	rt, store := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	require.NoError(t, rt.AnnounceJoin(ctx, bob, "bob"))
	drainLines(alice)
	drainLines(bob)

	rt.RecordAndBroadcast(ctx, "alice", "hi")

	assert.Equal(t, []string{"alice: hi"}, drainLines(alice))
	assert.Equal(t, []string{"alice: hi"}, drainLines(bob))

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []history.Record{{Username: "alice", Message: "hi"}}, records)
}

func TestSendPrivateReachesOnlyTheRecipient(t *testing.T) {
	rt, store := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	carol := newTestClient("carol")
	for _, c := range []*Client{alice, bob, carol} {
		require.NoError(t, rt.AnnounceJoin(ctx, c, c.username))
		drainLines(c)
	}
	drainLines(alice)
	drainLines(bob)

	rt.SendPrivate("bob", "alice", "secret")

	assert.Equal(t, []string{"Private from bob: secret"}, drainLines(alice))
	assert.Empty(t, drainLines(bob))
	assert.Empty(t, drainLines(carol))

	// Private messages are never persisted.
	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSendPrivateUnknownRecipientIsDropped(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	drainLines(alice)

	rt.SendPrivate("alice", "nobody", "anyone there?")

	assert.Empty(t, drainLines(alice))
	assert.Equal(t, 1, rt.Registry().Len())
}

func TestAnnounceLeaveNotifiesRemainingParticipants(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	require.NoError(t, rt.AnnounceJoin(ctx, bob, "bob"))
	drainLines(alice)
	drainLines(bob)

	rt.AnnounceLeave(alice)

	assert.Equal(t, []string{"alice left the chat"}, drainLines(bob))
	assert.Empty(t, drainLines(alice))
	assert.Equal(t, 1, rt.Registry().Len())
}

func TestAnnounceLeaveTwiceIsSilent(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	require.NoError(t, rt.AnnounceJoin(ctx, bob, "bob"))
	drainLines(alice)
	drainLines(bob)

	rt.AnnounceLeave(alice)
	rt.AnnounceLeave(alice)

	assert.Equal(t, []string{"alice left the chat"}, drainLines(bob))
}

func TestBroadcastSurvivesOneFailedRecipient(t *testing.T) {
	rt, _ := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	stuck := newTestClient("bob")
	carol := newTestClient("carol")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	require.NoError(t, rt.AnnounceJoin(ctx, stuck, "bob"))
	require.NoError(t, rt.AnnounceJoin(ctx, carol, "carol"))
	drainLines(alice)
	drainLines(carol)

	// Jam bob's outbound queue so the next delivery to him fails.
fill:
	for {
		select {
		case stuck.send <- []byte("backlog"):
		default:
			break fill
		}
	}

	rt.Broadcast("room notice")

	assert.Equal(t, []string{"room notice"}, drainLines(alice))
	assert.Equal(t, []string{"room notice"}, drainLines(carol))
}

// TestChatScenario walks the canonical alice/bob/carol exchange end to end
// at the router level.
func TestChatScenario(t *testing.T) {
	rt, store := newTestRouter()
	ctx := context.Background()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	require.NoError(t, rt.AnnounceJoin(ctx, alice, "alice"))
	require.NoError(t, rt.AnnounceJoin(ctx, bob, "bob"))
	drainLines(alice)
	drainLines(bob)

	rt.RecordAndBroadcast(ctx, "alice", "hi")
	assert.Equal(t, []string{"alice: hi"}, drainLines(bob))

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []history.Record{{Username: "alice", Message: "hi"}}, records)

	rt.SendPrivate("bob", "alice", "secret")
	assert.Equal(t, []string{"alice: hi", "Private from bob: secret"}, drainLines(alice))
	assert.Empty(t, drainLines(bob))

	records, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "private message must not be persisted")

	carol := newTestClient("carol")
	require.NoError(t, rt.AnnounceJoin(ctx, carol, "carol"))
	assert.Equal(t, []string{"carol joined the chat", "alice: hi"}, drainLines(carol))
	assert.Equal(t, []string{"carol joined the chat"}, drainLines(alice))
	assert.Equal(t, []string{"carol joined the chat"}, drainLines(bob))

	rt.AnnounceLeave(alice)
	assert.Equal(t, []string{"alice left the chat"}, drainLines(bob))
	assert.Equal(t, []string{"alice left the chat"}, drainLines(carol))
}
