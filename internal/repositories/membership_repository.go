package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

var ErrRoomNotFound = apperrors.WithMessage(apperrors.ErrNotFound, "room not found")

// MembershipRepository answers room access questions.
type MembershipRepository interface {
	IsMember(ctx context.Context, userID int64, room models.RoomRef) (bool, error)
	PeersOf(ctx context.Context, userID int64) ([]int64, error)
}

// MembershipRepo is a sqlx implementation of MembershipRepository.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// GetDirectRoom loads a DM room.
func (r *MembershipRepo) GetDirectRoom(ctx context.Context, roomID int64) (models.DirectRoom, error) {
	var room models.DirectRoom
	err := r.db.GetContext(ctx, &room, `SELECT id, participant_a, participant_b FROM dm_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectRoom{}, ErrRoomNotFound
	}
	return room, err
}

// GetGroupRoom loads a group or archive room.
func (r *MembershipRepo) GetGroupRoom(ctx context.Context, roomID int64) (models.GroupRoom, error) {
	var room models.GroupRoom
	err := r.db.GetContext(ctx, &room, `SELECT id, team_id, scope, room_kind FROM group_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupRoom{}, ErrRoomNotFound
	}
	return room, err
}

// IsMember reports whether userID may join room. Unknown rooms are not an error,
// nobody is a member of them.
func (r *MembershipRepo) IsMember(ctx context.Context, userID int64, room models.RoomRef) (bool, error) {
	switch room.Kind {
	case models.RoomDirect:
		dm, err := r.GetDirectRoom(ctx, room.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return dm.Has(userID), nil
	case models.RoomGroup, models.RoomArchive:
		group, err := r.GetGroupRoom(ctx, room.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if group.Kind != room.Kind {
			return false, nil
		}
		var member bool
		err = r.db.GetContext(ctx, &member, `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id=$1 AND user_id=$2)`, group.TeamID, userID)
		return member, err
	default:
		return false, apperrors.ErrMalformedRoute
	}
}

// PeersOf returns every user who shares a DM or a team with userID.
func (r *MembershipRepo) PeersOf(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT DISTINCT peer FROM (
            SELECT CASE WHEN participant_a=$1 THEN participant_b ELSE participant_a END AS peer
            FROM dm_rooms
            WHERE participant_a=$1 OR participant_b=$1
            UNION
            SELECT other.user_id AS peer
            FROM team_members self
            INNER JOIN team_members other ON other.team_id = self.team_id
            WHERE self.user_id=$1
        ) peers
        WHERE peer <> $1
        ORDER BY peer`
	var peers []int64
	err := r.db.SelectContext(ctx, &peers, query, userID)
	return peers, err
}
