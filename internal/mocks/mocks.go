package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) Recent(ctx context.Context, room models.RoomRef, limit int) ([]models.Message, error) {
	args := m.Called(ctx, room, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, room models.RoomRef, before time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, room, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type MembershipRepositoryMock struct {
	mock.Mock
}

func (m *MembershipRepositoryMock) IsMember(ctx context.Context, userID int64, room models.RoomRef) (bool, error) {
	args := m.Called(ctx, userID, room)
	return args.Bool(0), args.Error(1)
}

func (m *MembershipRepositoryMock) PeersOf(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var peers []int64
	if val := args.Get(0); val != nil {
		peers = val.([]int64)
	}
	return peers, args.Error(1)
}

type ArchiveRepositoryMock struct {
	mock.Mock
}

func (m *ArchiveRepositoryMock) Create(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error) {
	args := m.Called(ctx, item)
	var stored models.ArchiveItem
	if val := args.Get(0); val != nil {
		stored = val.(models.ArchiveItem)
	}
	return stored, args.Error(1)
}

func (m *ArchiveRepositoryMock) Get(ctx context.Context, id int64) (models.ArchiveItem, error) {
	args := m.Called(ctx, id)
	var item models.ArchiveItem
	if val := args.Get(0); val != nil {
		item = val.(models.ArchiveItem)
	}
	return item, args.Error(1)
}

func (m *ArchiveRepositoryMock) Delete(ctx context.Context, id, uploaderID int64) error {
	args := m.Called(ctx, id, uploaderID)
	return args.Error(0)
}

func (m *ArchiveRepositoryMock) DeleteTags(ctx context.Context, archiveItemID int64) (int64, error) {
	args := m.Called(ctx, archiveItemID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ArchiveRepositoryMock) TagsWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	args := m.Called(ctx, prefix, limit)
	var names []string
	if val := args.Get(0); val != nil {
		names = val.([]string)
	}
	return names, args.Error(1)
}

var (
	_ repositories.MessageRepository    = (*MessageRepositoryMock)(nil)
	_ repositories.MembershipRepository = (*MembershipRepositoryMock)(nil)
	_ repositories.ArchiveRepository    = (*ArchiveRepositoryMock)(nil)
)
