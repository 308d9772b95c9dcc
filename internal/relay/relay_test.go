package relay

import (
	"net"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const quiet = 150 * time.Millisecond

func TestChatScenario(t *testing.T) {
	r := newTestRelay(t, testOptions())
	require.Equal(t, 0, r.Status().ConnectedClients)

	alice := connect(t, r, "alice")
	require.Equal(t, 1, r.Status().ConnectedClients)
	alice.drain(quiet)

	bob := connect(t, r, "bob")
	require.Equal(t, 2, r.Status().ConnectedClients)
	bob.drain(quiet)

	// Alice is told bob joined.
	joined := alice.nextOfKind(KindSystem)
	assert.Contains(t, joined.Body, "bob has joined")
	alice.drain(quiet)

	alice.sendChat("hi")

	msg := bob.nextOfKind(KindChat)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "hi", msg.Body)
	assert.NotEmpty(t, msg.SenderID)
	assert.NotZero(t, msg.Sent)

	// Echo is on by default, so alice sees her own message too.
	echo := alice.nextOfKind(KindChat)
	assert.Equal(t, "hi", echo.Body)

	bob.close()

	left := alice.nextOfKind(KindSystem)
	assert.Contains(t, left.Body, "bob has left")
	require.Eventually(t, func() bool {
		return r.Status().ConnectedClients == 1
	}, testWait, 10*time.Millisecond)
}

func TestOversizeMessageRejected(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	alice.sendChat(strings.Repeat("x", 5000))

	// Exactly one rejection notice to the sender, nothing broadcast.
	notice := alice.nextOfKind(KindNotice)
	assert.Contains(t, notice.Body, "rejected")
	alice.expectSilence(quiet)
	bob.expectSilence(quiet)
}

func TestEmptyMessageDropped(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	alice.sendChat("   \t  ")
	bob.expectSilence(quiet)
}

func TestPerSenderOrdering(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	const count = 20
	for i := 0; i < count; i++ {
		alice.sendChat(strings.Repeat("m", i+1))
	}

	for i := 0; i < count; i++ {
		msg := bob.nextOfKind(KindChat)
		assert.Len(t, msg.Body, i+1, "message %d out of order", i)
	}
}

func TestEchoDisabled(t *testing.T) {
	opts := testOptions()
	opts.Echo = false
	r := newTestRelay(t, opts)

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	alice.sendChat("hi")

	msg := bob.nextOfKind(KindChat)
	assert.Equal(t, "hi", msg.Body)
	alice.expectSilence(quiet)
}

func TestDuplicateDisplayNamesAllowed(t *testing.T) {
	r := newTestRelay(t, testOptions())

	connect(t, r, "alice")
	connect(t, r, "alice")

	require.Equal(t, 2, r.Registry().Len())
	assert.Equal(t, []string{"alice", "alice"}, r.Registry().Names())
}

func TestGuestNameAssigned(t *testing.T) {
	r := newTestRelay(t, testOptions())

	c := connect(t, r, "")

	names := r.Registry().Names()
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "guest-"), "got name %q", names[0])

	welcome := c.nextOfKind(KindNotice)
	assert.Contains(t, welcome.Body, names[0])
}

func TestHandshakeMalformed(t *testing.T) {
	r := newTestRelay(t, testOptions())

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })
	transport := NewLineTransport(serverConn, r.Options().MaxFrameBytes(), 0, testWait)

	accepted := make(chan error, 1)
	go func() {
		accepted <- r.Accept(transport, "pipe")
	}()

	_, err := clientConn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	acceptErr := <-accepted
	var hsErr *HandshakeError
	require.ErrorAs(t, acceptErr, &hsErr)
	require.Equal(t, 0, r.Registry().Len())
}

func TestHandshakeTimeout(t *testing.T) {
	opts := testOptions()
	opts.HandshakeTimeout = 50 * time.Millisecond
	r := newTestRelay(t, opts)

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })
	transport := NewLineTransport(serverConn, r.Options().MaxFrameBytes(), 0, testWait)

	accepted := make(chan error, 1)
	go func() {
		accepted <- r.Accept(transport, "pipe")
	}()

	acceptErr := <-accepted
	var hsErr *HandshakeError
	require.ErrorAs(t, acceptErr, &hsErr)
	assert.Contains(t, hsErr.Reason, "timed out")
	require.Equal(t, 0, r.Registry().Len())
}

func TestHandshakeNameTruncated(t *testing.T) {
	r := newTestRelay(t, testOptions())

	connect(t, r, strings.Repeat("n", 100))

	names := r.Registry().Names()
	require.Len(t, names, 1)
	assert.Len(t, names[0], r.Options().MaxNameLength)
}

func TestRename(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	// Renaming onto a live name is refused privately.
	bob.send(Frame{Type: KindRename, Name: "alice"})
	taken := bob.nextOfKind(KindNotice)
	assert.Contains(t, taken.Body, "taken")
	alice.expectSilence(quiet)
	names := r.Registry().Names()
	sort.Strings(names)
	assert.Equal(t, []string{"alice", "bob"}, names)

	bob.send(Frame{Type: KindRename, Name: "robert"})
	renamed := alice.nextOfKind(KindSystem)
	assert.Contains(t, renamed.Body, "bob changed their name to robert")
	users := alice.nextOfKind(KindUsers)
	assert.Contains(t, users.Users, "robert")
}

func TestClearCommand(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	alice.sendChat("/clear")

	notice := alice.nextOfKind(KindNotice)
	assert.True(t, notice.Clear)
	bob.expectSilence(quiet)
}

func TestHistoryReplayOnJoin(t *testing.T) {
	opts := testOptions()
	opts.HistoryReplay = 2
	r := newTestRelay(t, opts)

	alice := connect(t, r, "alice")
	alice.drain(quiet)
	alice.sendChat("one")
	alice.sendChat("two")
	alice.sendChat("three")
	alice.drain(quiet)

	bob := connect(t, r, "bob")
	frames := bob.drain(quiet)

	var replayed []string
	for _, f := range frames {
		if f.Type == KindChat {
			replayed = append(replayed, f.Body)
		}
	}
	// Only the newest two, oldest first.
	assert.Equal(t, []string{"two", "three"}, replayed)
}

func TestDisconnectedSessionExcludedFromBroadcasts(t *testing.T) {
	r := newTestRelay(t, testOptions())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	carol := connect(t, r, "carol")
	alice.drain(quiet)
	bob.drain(quiet)
	carol.drain(quiet)

	bob.close()

	// Exactly one leave notice each for the remaining sessions.
	for _, c := range []*testClient{alice, carol} {
		leaves := 0
		for _, f := range c.drain(quiet) {
			if f.Type == KindSystem && strings.Contains(f.Body, "bob has left") {
				leaves++
			}
		}
		assert.Equal(t, 1, leaves)
	}

	alice.sendChat("still here")
	msg := carol.nextOfKind(KindChat)
	assert.Equal(t, "still here", msg.Body)
}

func TestShutdownClosesAllSessions(t *testing.T) {
	r := New(testOptions(), zap.NewNop())

	alice := connect(t, r, "alice")
	bob := connect(t, r, "bob")
	alice.drain(quiet)
	bob.drain(quiet)

	require.NoError(t, r.Shutdown(testWait))
	require.Equal(t, 0, r.Registry().Len())

	// New connections are refused once shutdown began.
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })
	transport := NewLineTransport(serverConn, r.Options().MaxFrameBytes(), 0, testWait)
	require.ErrorIs(t, r.Accept(transport, "pipe"), ErrRelayClosed)
}
