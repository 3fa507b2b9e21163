package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/models"
)

var (
	roomA = models.RoomRef{Kind: models.RoomGroup, ID: 1}
	roomB = models.RoomRef{Kind: models.RoomDirect, ID: 2}
)

func testClient(id string, userID int64, room models.RoomRef) *Client {
	return NewClient(nil, ConnInfo{ConnID: id, UserID: userID, Room: room, ConnectedAt: time.Now()}, 4)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case p := <-c.send:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestRegisterAndReleaseTrackFirstAndLast(t *testing.T) {
	hub := NewHub(nil)
	tab1 := testClient("t1", 7, roomA)
	tab2 := testClient("t2", 7, roomB)

	assert.True(t, hub.Register(tab1))
	assert.False(t, hub.Register(tab2))
	assert.False(t, hub.Register(tab2), "double register is a no-op")
	assert.Equal(t, 2, hub.UserConnections(7))
	assert.Equal(t, 1, hub.RoomConnections(roomA))

	assert.False(t, hub.Release(tab1))
	assert.True(t, hub.Release(tab2))
	assert.False(t, hub.Release(tab2), "double release is a no-op")
	assert.Zero(t, hub.Len())
	assert.Zero(t, hub.RoomConnections(roomA))

	select {
	case <-tab1.Done():
	default:
		t.Fatal("released client must be closed")
	}
}

func TestLifecycleHooksFireOncePerTransition(t *testing.T) {
	hub := NewHub(nil)
	var first, last []int64
	hub.OnFirstConnect(func(userID int64) { first = append(first, userID) })
	hub.OnLastDisconnect(func(userID int64) { last = append(last, userID) })

	tab1 := testClient("t1", 7, roomA)
	tab2 := testClient("t2", 7, roomA)
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Release(tab1)
	assert.Equal(t, []int64{7}, first)
	assert.Empty(t, last)

	hub.Release(tab2)
	assert.Equal(t, []int64{7}, last)
}

func TestBroadcastReachesEveryTabOnce(t *testing.T) {
	hub := NewHub(nil)
	sender := testClient("s", 1, roomA)
	tab1 := testClient("t1", 2, roomA)
	tab2 := testClient("t2", 2, roomA)
	elsewhere := testClient("x", 2, roomB)
	for _, c := range []*Client{sender, tab1, tab2, elsewhere} {
		hub.Register(c)
	}

	delivered := hub.Broadcast(roomA, []byte(`{"type":"message"}`))
	assert.Equal(t, 3, delivered)
	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
	assert.Len(t, drain(sender), 1)
	assert.Empty(t, drain(elsewhere))
}

func TestBroadcastSkipsListedConnections(t *testing.T) {
	hub := NewHub(nil)
	a := testClient("a", 1, roomA)
	b := testClient("b", 2, roomA)
	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 1, hub.Broadcast(roomA, []byte("x"), "a"))
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestSendReachesUserInEveryRoom(t *testing.T) {
	hub := NewHub(nil)
	tab1 := testClient("t1", 2, roomA)
	tab2 := testClient("t2", 2, roomB)
	other := testClient("o", 3, roomA)
	for _, c := range []*Client{tab1, tab2, other} {
		hub.Register(c)
	}

	assert.Equal(t, 2, hub.Send(2, []byte("presence")))
	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(other))
	assert.Zero(t, hub.Send(99, []byte("nobody")))
}

func TestSlowClientIsDroppedWithoutBlockingOthers(t *testing.T) {
	hub := NewHub(nil)
	slow := testClient("slow", 1, roomA)
	fast := testClient("fast", 2, roomA)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < cap(slow.send); i++ {
		require.True(t, slow.enqueue([]byte("backlog")))
	}

	assert.Equal(t, 1, hub.Broadcast(roomA, []byte("next")))
	assert.Len(t, drain(fast), 1)

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("saturated client must be closed")
	}
	assert.Equal(t, CloseSendQueueFull, slow.closeCode)
	require.Eventually(t, func() bool { return hub.RoomConnections(roomA) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Broadcast(roomA, []byte("after")))
}

func TestClosedClientRejectsDelivery(t *testing.T) {
	hub := NewHub(nil)
	c := testClient("c", 1, roomA)
	hub.Register(c)
	c.Close(1000, "")

	assert.False(t, hub.Deliver(c, []byte("late")))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConcurrentRegisterBroadcastRelease(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := testClient(fmt.Sprintf("c%d", i), int64(i%5), roomA)
			hub.Register(c)
			hub.Broadcast(roomA, []byte("x"))
			hub.Send(int64(i%5), []byte("y"))
			hub.Release(c)
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseReasonIsTruncated(t *testing.T) {
	c := testClient("c", 1, roomA)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	c.Close(4500, string(long))
	assert.Len(t, c.closeReason, maxCloseReason)
}

func TestCloseReasonKeepsRunesWhole(t *testing.T) {
	c := testClient("c", 1, roomA)
	reason := strings.Repeat("x", maxCloseReason-1) + "é" + "tail"
	c.Close(4500, reason)

	assert.True(t, utf8.ValidString(c.closeReason))
	assert.Equal(t, strings.Repeat("x", maxCloseReason-1), c.closeReason)
	assert.Equal(t, "ok", truncateReason("ok"))
}

func TestErrorEventHidesInternalDetails(t *testing.T) {
	ev := errorEvent(fmt.Errorf("pq: relation missing"), "r1")
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":{"code":"INTERNAL_ERROR","message":"internal server error"},"ref":"r1"}`, string(payload))
}
