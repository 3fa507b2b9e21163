package archive

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

// AutocompleteLimit caps the suggestions returned for one prefix.
const AutocompleteLimit = 5

type Indexer struct {
	repo   repositories.ArchiveRepository
	logger *zap.Logger
}

func NewIndexer(repo repositories.ArchiveRepository, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{repo: repo, logger: logger}
}

// Index derives the tags of item from its file name and stores both together.
func (i *Indexer) Index(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error) {
	if strings.TrimSpace(item.FileName) == "" || strings.TrimSpace(item.FileURL) == "" {
		return models.ArchiveItem{}, apperrors.WithMessage(apperrors.ErrMalformedMessage, "fileName and fileUrl are required")
	}
	item.Tags = ExtractTags(item.FileName)

	stored, err := i.repo.Create(ctx, item)
	if err != nil {
		i.logger.Error("archive index failed", zap.String("file", item.FileName), zap.Error(err))
		return models.ArchiveItem{}, err
	}
	stored.Tags = item.Tags
	return stored, nil
}

// Autocomplete suggests up to AutocompleteLimit tag names starting with prefix,
// most recently created first. An empty prefix matches every tag.
func (i *Indexer) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), TagMarker)
	names, err := i.repo.TagsWithPrefix(ctx, prefix, AutocompleteLimit)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DeleteTagsFor removes every tag of an archive item atomically.
func (i *Indexer) DeleteTagsFor(ctx context.Context, archiveItemID int64) error {
	removed, err := i.repo.DeleteTags(ctx, archiveItemID)
	if err != nil {
		return err
	}
	i.logger.Debug("archive tags removed", zap.Int64("archive_item_id", archiveItemID), zap.Int64("count", removed))
	return nil
}

// Remove deletes an item owned by uploaderID along with its tags.
func (i *Indexer) Remove(ctx context.Context, archiveItemID, uploaderID int64) error {
	item, err := i.repo.Get(ctx, archiveItemID)
	if err != nil {
		return err
	}
	if item.UploaderID != uploaderID {
		return apperrors.ErrUnauthorized
	}
	if err := i.DeleteTagsFor(ctx, archiveItemID); err != nil {
		return err
	}
	return i.repo.Delete(ctx, archiveItemID, uploaderID)
}

// Get loads an archive item.
func (i *Indexer) Get(ctx context.Context, archiveItemID int64) (models.ArchiveItem, error) {
	return i.repo.Get(ctx, archiveItemID)
}
