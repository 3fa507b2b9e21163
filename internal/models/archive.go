package models

import "time"

// ArchiveItem is a shared file posted into a room.
type ArchiveItem struct {
	ID int64 `db:"id" json:"id"`
	RoomRef
	UploaderID int64     `db:"uploader_id" json:"uploaderId"`
	FileURL    string    `db:"file_url" json:"fileUrl"`
	FileName   string    `db:"file_name" json:"fileName"`
	Tags       []string  `db:"-" json:"tags"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ArchiveTag is one (tag, archive item) row.
type ArchiveTag struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	ArchiveItemID int64     `db:"archive_item_id" json:"archiveItemId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
