package presence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-gateway/internal/models"
)

const maxUpdateAttempts = 16

var errTooMuchContention = errors.New("presence update aborted after repeated conflicts")

// RedisStore keeps one hash per user plus a set of tracked user ids. Updates use
// WATCH/MULTI so a concurrent writer forces a re-read.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore stores records under "<namespace>:user:<id>" and tracks ids in
// "<namespace>:users". The namespace defaults to "presence".
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "presence"
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(userID int64) string {
	return s.namespace + ":user:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) setKey() string {
	return s.namespace + ":users"
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (models.PresenceState, error) {
	vals, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return models.PresenceState{}, err
	}
	st, ok := decodeState(userID, vals)
	if !ok {
		return models.PresenceState{}, ErrPresenceNotFound
	}
	return st, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.PresenceState, error) {
	members, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			id, convErr := strconv.ParseInt(m, 10, 64)
			if convErr != nil {
				continue
			}
			ids = append(ids, id)
			cmds = append(cmds, pipe.HGetAll(ctx, s.key(id)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.PresenceState, 0, len(ids))
	for i, cmd := range cmds {
		if st, ok := decodeState(ids[i], cmd.Val()); ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, userID int64, fn Mutation) (models.PresenceState, models.PresenceState, bool, error) {
	key := s.key(userID)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var (
			prev, next models.PresenceState
			written    bool
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			cur, found := decodeState(userID, vals)
			prev, next = cur, cur

			candidate, write := fn(cur, found)
			if !write {
				return nil
			}
			candidate.UserID = userID

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					"status", string(candidate.Status),
					"last_activity", candidate.LastActivityAt.UnixNano(),
				)
				pipe.SAdd(ctx, s.setKey(), userID)
				return nil
			})
			if err != nil {
				return err
			}
			next, written = candidate, true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.PresenceState{}, models.PresenceState{}, false, err
		}
		return prev, next, written, nil
	}
	return models.PresenceState{}, models.PresenceState{}, false, errTooMuchContention
}

func decodeState(userID int64, vals map[string]string) (models.PresenceState, bool) {
	status, ok := vals["status"]
	if !ok {
		return models.PresenceState{}, false
	}
	nanos, err := strconv.ParseInt(vals["last_activity"], 10, 64)
	if err != nil {
		return models.PresenceState{}, false
	}
	return models.PresenceState{
		UserID:         userID,
		Status:         models.PresenceStatus(status),
		LastActivityAt: time.Unix(0, nanos).UTC(),
	}, true
}
