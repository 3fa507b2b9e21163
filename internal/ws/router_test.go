package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/mocks"
	"chat-gateway/internal/models"
)

func TestResolve(t *testing.T) {
	router := NewRouter(nil, nil, NewHub(nil), nil, 0, nil)

	cases := map[string]models.RoomRef{
		"/ws/dm/5":       {Kind: models.RoomDirect, ID: 5},
		"/ws/group/12":   {Kind: models.RoomGroup, ID: 12},
		"/ws/archive/3/": {Kind: models.RoomArchive, ID: 3},
	}
	for path, want := range cases {
		got, err := router.Resolve(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	for _, bad := range []string{"/ws/voice/1", "/ws/dm/abc", "/ws/dm/0", "/ws/dm/-1", "/ws/dm", "/ws/dm/1/extra", "/chat/dm/1", ""} {
		_, err := router.Resolve(bad)
		assert.ErrorIs(t, err, apperrors.ErrMalformedRoute, bad)
	}
}

func TestAuthorize(t *testing.T) {
	members := new(mocks.MembershipRepositoryMock)
	router := NewRouter(members, nil, NewHub(nil), nil, 0, nil)
	room := models.RoomRef{Kind: models.RoomDirect, ID: 5}

	members.On("IsMember", mock.Anything, int64(1), room).Return(true, nil).Once()
	members.On("IsMember", mock.Anything, int64(2), room).Return(false, nil).Once()
	members.On("IsMember", mock.Anything, int64(3), room).Return(false, assert.AnError).Once()

	assert.NoError(t, router.Authorize(context.Background(), 1, room))
	assert.ErrorIs(t, router.Authorize(context.Background(), 2, room), apperrors.ErrUnauthorized)
	err := router.Authorize(context.Background(), 3, room)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
	members.AssertExpectations(t)
}

type countingLocker struct {
	locked   int
	unlocked int
}

func (l *countingLocker) LockRoom(models.RoomRef) func() {
	l.locked++
	return func() { l.unlocked++ }
}

func TestAttachRegistersAndSendsSnapshot(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	hub := NewHub(nil)
	locker := &countingLocker{}
	router := NewRouter(nil, messages, hub, locker, 2, nil)
	room := models.RoomRef{Kind: models.RoomGroup, ID: 4}
	now := time.Now().UTC()

	messages.On("Recent", mock.Anything, room, 2).Return([]models.Message{
		{ID: 1, RoomRef: room, SenderID: 3, Kind: models.KindText, Body: "a", CreatedAt: now.Add(-time.Second)},
		{ID: 2, RoomRef: room, SenderID: 3, Kind: models.KindText, Body: "b", CreatedAt: now},
	}, nil).Once()

	c := testClient("c1", 9, room)
	first, err := router.Attach(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 1, hub.RoomConnections(room))
	assert.Equal(t, 1, locker.locked)
	assert.Equal(t, 1, locker.unlocked)

	queued := drain(c)
	require.Len(t, queued, 1)
	var ev models.Event
	require.NoError(t, json.Unmarshal(queued[0], &ev))
	assert.Equal(t, models.EventSnapshot, ev.Type)
	require.Len(t, ev.Messages, 2)
	assert.Equal(t, "a", ev.Messages[0].Body)
	assert.Equal(t, "b", ev.Messages[1].Body)
}

func TestAttachFailureLeavesNothingRegistered(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	hub := NewHub(nil)
	router := NewRouter(nil, messages, hub, nil, 0, nil)
	room := models.RoomRef{Kind: models.RoomGroup, ID: 4}

	messages.On("Recent", mock.Anything, room, 50).Return(nil, assert.AnError).Once()

	_, err := router.Attach(context.Background(), testClient("c1", 9, room))
	require.Error(t, err)
	assert.Zero(t, hub.Len())
}
