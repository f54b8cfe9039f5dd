package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAuth struct{}

func (stubAuth) GenerateToken(domain.UserID, string, domain.OrganizationID) (string, error) {
	return "token", nil
}

func (stubAuth) GenerateRefreshToken(domain.UserID) (string, error) {
	return "refresh", nil
}

func (stubAuth) ValidateToken(token string) (*ports.AuthClaims, error) {
	return &ports.AuthClaims{UserID: "user-1", OrganizationID: "org-1"}, nil
}

type deniedAuth struct{}

func (deniedAuth) GenerateToken(domain.UserID, string, domain.OrganizationID) (string, error) {
	return "", errors.New("denied")
}

func (deniedAuth) GenerateRefreshToken(domain.UserID) (string, error) {
	return "", errors.New("denied")
}

func (deniedAuth) ValidateToken(string) (*ports.AuthClaims, error) {
	return nil, errors.New("invalid token")
}

// recordingConn captures socket writes so client pump behavior is testable
// without a live connection.
type recordingConn struct {
	mu     sync.Mutex
	writes []interface{}
	closed bool
}

func (c *recordingConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("closed") }
func (c *recordingConn) WriteMessage(int, []byte) error    { return nil }
func (c *recordingConn) SetReadLimit(int64)                {}
func (c *recordingConn) SetReadDeadline(time.Time) error   { return nil }
func (c *recordingConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *recordingConn) SetPongHandler(func(string) error) {}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) frames() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.writes...)
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHub(t *testing.T, bufferSize int) *Hub {
	t.Helper()
	opts := DefaultOptions()
	opts.SendBufferSize = bufferSize
	return New(stubAuth{}, opts, nil, zaptest.NewLogger(t).Sugar())
}

func newAuthedClient(h *Hub) *Client {
	c := newClient("test-client", nil, h)
	c.authenticated.Store(true)
	h.addClient(c)
	return c
}

func issueCreatedEvent(org domain.OrganizationID, campus domain.CampusID, building domain.BuildingID) *domain.EventEnvelope {
	issue := domain.IssueRecord{
		ID:             "issue-1",
		OrganizationID: org,
		CampusID:       campus,
		BuildingID:     building,
		Severity:       5,
	}
	return &domain.EventEnvelope{
		Type:           domain.EventIssueCreated,
		OrganizationID: org,
		CampusID:       campus,
		BuildingID:     building,
		Priority:       domain.PriorityMedium,
		Timestamp:      time.Now(),
		Payload:        domain.IssueCreatedPayload{Issue: issue},
	}
}

func drain(c *Client) []interface{} {
	var out []interface{}
	for {
		select {
		case v := <-c.send:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestSubscribe_Idempotent(t *testing.T) {
	h := newTestHub(t, 8)
	c := newAuthedClient(h)

	room := domain.OrganizationRoom("org-1")

	joined, count, err := h.Subscribe(c, room)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, 1, count)

	joined, count, err = h.Subscribe(c, room)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, 1, count)
}

func TestSubscribe_RejectsUnauthenticated(t *testing.T) {
	h := newTestHub(t, 8)
	c := newClient("anon", nil, h)
	h.addClient(c)

	_, _, err := h.Subscribe(c, domain.OrganizationRoom("org-1"))
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	// No membership was created.
	assert.Empty(t, h.Stats().Rooms)
}

func TestPublish_RoomIsolation(t *testing.T) {
	h := newTestHub(t, 8)

	inOrg1 := newAuthedClient(h)
	inOrg2 := newAuthedClient(h)
	inBuilding := newAuthedClient(h)

	_, _, err := h.Subscribe(inOrg1, domain.OrganizationRoom("org-1"))
	require.NoError(t, err)
	_, _, err = h.Subscribe(inOrg2, domain.OrganizationRoom("org-2"))
	require.NoError(t, err)
	_, _, err = h.Subscribe(inBuilding, domain.BuildingRoom("org-1", "bldg-7"))
	require.NoError(t, err)

	require.NoError(t, h.Publish(issueCreatedEvent("org-1", "", "bldg-7")))

	assert.Len(t, drain(inOrg1), 1)
	assert.Empty(t, drain(inOrg2))
	assert.Len(t, drain(inBuilding), 1)
}

func TestPublish_DeduplicatesAcrossRooms(t *testing.T) {
	h := newTestHub(t, 8)
	c := newAuthedClient(h)

	// Subscribed to two rooms the same event targets.
	_, _, err := h.Subscribe(c, domain.OrganizationRoom("org-1"))
	require.NoError(t, err)
	_, _, err = h.Subscribe(c, domain.HeatmapRoom("org-1"))
	require.NoError(t, err)

	require.NoError(t, h.Publish(issueCreatedEvent("org-1", "", "")))

	assert.Len(t, drain(c), 1)
}

func TestPublish_NonBlockingWithFullBuffer(t *testing.T) {
	h := newTestHub(t, 1)
	stalled := newAuthedClient(h)

	_, _, err := h.Subscribe(stalled, domain.OrganizationRoom("org-1"))
	require.NoError(t, err)

	// Nothing drains the buffer, so repeated publishes must still return
	// immediately, evicting the oldest frame each time.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = h.Publish(issueCreatedEvent("org-1", "", ""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}

	// The stalled client holds exactly one frame, the newest one wins.
	assert.Len(t, drain(stalled), 1)
}

func TestPublish_RejectsMalformedEnvelope(t *testing.T) {
	h := newTestHub(t, 8)

	err := h.Publish(&domain.EventEnvelope{Type: domain.EventIssueCreated})
	assert.Error(t, err)
}

func TestRemoveClient_CleansAllMemberships(t *testing.T) {
	h := newTestHub(t, 8)
	c := newAuthedClient(h)
	other := newAuthedClient(h)

	_, _, err := h.Subscribe(c, domain.OrganizationRoom("org-1"))
	require.NoError(t, err)
	_, _, err = h.Subscribe(c, domain.CampusRoom("org-1", "north"))
	require.NoError(t, err)
	_, _, err = h.Subscribe(other, domain.OrganizationRoom("org-1"))
	require.NoError(t, err)

	h.removeClient(c)

	stats := h.Stats()
	assert.Equal(t, 1, stats.ConnectedClients)
	// The campus room emptied out and was deleted entirely.
	assert.Equal(t, map[string]int{"org:org-1": 1}, stats.Rooms)
}

func TestUnsubscribe_DeletesEmptyRoom(t *testing.T) {
	h := newTestHub(t, 8)
	c := newAuthedClient(h)

	room := domain.BuildingRoom("org-1", "bldg-1")
	_, _, err := h.Subscribe(c, room)
	require.NoError(t, err)

	h.Unsubscribe(c, room)

	assert.Empty(t, h.Stats().Rooms)
}

func TestAuthFailure_TerminalErrorFrameDeliveredBeforeClose(t *testing.T) {
	h := New(deniedAuth{}, DefaultOptions(), nil, zaptest.NewLogger(t).Sugar())
	conn := &recordingConn{}
	c := newClient("c1", conn, h)
	h.addClient(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	// A bad token is fatal for the connection, but the single terminal
	// error frame still has to reach the wire before the socket closes.
	fatal := c.handleMessage(clientMessage{Type: msgAuthenticate, Token: "bad"})
	require.True(t, fatal)
	c.close()
	<-writerDone

	frames := conn.frames()
	require.NotEmpty(t, frames)
	last, ok := frames[len(frames)-1].(errorFrame)
	require.True(t, ok)
	assert.Equal(t, "error", last.Type)
	assert.True(t, conn.isClosed())
}

func TestHub_RejectsAfterClose(t *testing.T) {
	h := newTestHub(t, 8)
	c := newAuthedClient(h)

	h.Close()

	_, _, err := h.Subscribe(c, domain.OrganizationRoom("org-1"))
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.ErrorIs(t, h.Publish(issueCreatedEvent("org-1", "", "")), ErrHubClosed)
}

func TestNotify_DropsInvalidEventWithoutPanic(t *testing.T) {
	h := newTestHub(t, 8)

	h.Notify(&domain.EventEnvelope{})
}
