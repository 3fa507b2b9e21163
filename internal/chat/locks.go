package chat

import (
	"sync"

	"chat-gateway/internal/models"
)

// roomLocks hands out one mutex per room, dropping it once nobody holds it.
type roomLocks struct {
	mu    sync.Mutex
	locks map[models.RoomRef]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[models.RoomRef]*roomLock)}
}

func (l *roomLocks) lock(room models.RoomRef) func() {
	l.mu.Lock()
	rl, ok := l.locks[room]
	if !ok {
		rl = &roomLock{}
		l.locks[room] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, room)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
