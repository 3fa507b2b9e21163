package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

var ErrArchiveNotFound = apperrors.WithMessage(apperrors.ErrNotFound, "archive item not found")

// ArchiveRepository persists archive items and their tag rows.
type ArchiveRepository interface {
	Create(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error)
	Get(ctx context.Context, id int64) (models.ArchiveItem, error)
	Delete(ctx context.Context, id, uploaderID int64) error
	DeleteTags(ctx context.Context, archiveItemID int64) (int64, error)
	TagsWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}

// ArchiveRepo is a sqlx-backed ArchiveRepository.
type ArchiveRepo struct {
	db *sqlx.DB
}

func NewArchiveRepo(db *sqlx.DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// Create inserts the item and one tag row per tag atomically.
func (r *ArchiveRepo) Create(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ArchiveItem{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO archive_items (room_type, room_id, uploader_id, file_url, file_name) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		item.RoomRef.Kind, item.RoomRef.ID, item.UploaderID, item.FileURL, item.FileName).
		Scan(&item.ID, &item.CreatedAt); err != nil {
		return models.ArchiveItem{}, err
	}

	for _, tag := range item.Tags {
		if _, err = tx.ExecContext(ctx, `INSERT INTO archive_tags (name, archive_item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, tag, item.ID); err != nil {
			return models.ArchiveItem{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.ArchiveItem{}, err
	}
	return item, nil
}

// Get loads an item with its tags.
func (r *ArchiveRepo) Get(ctx context.Context, id int64) (models.ArchiveItem, error) {
	var item models.ArchiveItem
	err := r.db.GetContext(ctx, &item, `SELECT id, room_type, room_id, uploader_id, file_url, file_name, created_at FROM archive_items WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ArchiveItem{}, ErrArchiveNotFound
	}
	if err != nil {
		return models.ArchiveItem{}, err
	}

	if err := r.db.SelectContext(ctx, &item.Tags, `SELECT name FROM archive_tags WHERE archive_item_id=$1 ORDER BY name`, id); err != nil {
		return models.ArchiveItem{}, err
	}
	return item, nil
}

// Delete removes an item owned by uploaderID. Tag rows cascade.
func (r *ArchiveRepo) Delete(ctx context.Context, id, uploaderID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM archive_items WHERE id=$1 AND uploader_id=$2`, id, uploaderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrArchiveNotFound
	}
	return nil
}

// DeleteTags removes every tag row of an item in a single transaction.
func (r *ArchiveRepo) DeleteTags(ctx context.Context, archiveItemID int64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM archive_tags WHERE archive_item_id=$1`, archiveItemID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// TagsWithPrefix returns distinct tag names starting with prefix, most recently
// created first. Matching is case-sensitive.
func (r *ArchiveRepo) TagsWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names, `SELECT name FROM archive_tags
        WHERE name LIKE $1 ESCAPE '\'
        GROUP BY name
        ORDER BY MAX(created_at) DESC, MAX(id) DESC
        LIMIT $2`, escapeLike(prefix)+"%", limit)
	return names, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
