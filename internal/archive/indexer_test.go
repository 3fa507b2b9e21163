package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/mocks"
	"chat-gateway/internal/models"
)

func TestExtractTags(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		want     []string
	}{
		{"example", "idea#plan_final#design.ppt", []string{"design", "plan"}},
		{"empty", "", []string{}},
		{"no marker", "quarterly_report-v2.pdf", []string{}},
		{"bare markers", "## # _#.txt", []string{}},
		{"duplicates", "#q3 notes #q3-#budget.xlsx", []string{"budget", "q3"}},
		{"case sensitive", "#Plan#plan", []string{"Plan", "plan"}},
		{"unicode", "회의#기획_초안.docx", []string{"기획"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractTags(tc.fileName))
		})
	}
}

func TestIndexStoresDerivedTags(t *testing.T) {
	repo := new(mocks.ArchiveRepositoryMock)
	indexer := NewIndexer(repo, nil)
	item := models.ArchiveItem{
		RoomRef:    models.RoomRef{Kind: models.RoomArchive, ID: 3},
		UploaderID: 1,
		FileURL:    "https://files/1",
		FileName:   "idea#plan_final#design.ppt",
	}

	repo.On("Create", mock.Anything, mock.MatchedBy(func(it models.ArchiveItem) bool {
		return assert.ObjectsAreEqual([]string{"design", "plan"}, it.Tags)
	})).Return(models.ArchiveItem{ID: 10, RoomRef: item.RoomRef, UploaderID: 1, FileURL: item.FileURL, FileName: item.FileName}, nil).Once()

	stored, err := indexer.Index(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.ID)
	assert.Equal(t, []string{"design", "plan"}, stored.Tags)
	repo.AssertExpectations(t)
}

func TestIndexRequiresFile(t *testing.T) {
	indexer := NewIndexer(new(mocks.ArchiveRepositoryMock), nil)
	_, err := indexer.Index(context.Background(), models.ArchiveItem{FileName: "  "})
	assert.ErrorIs(t, err, apperrors.ErrMalformedMessage)
}

func TestAutocomplete(t *testing.T) {
	repo := new(mocks.ArchiveRepositoryMock)
	indexer := NewIndexer(repo, nil)

	repo.On("TagsWithPrefix", mock.Anything, "pl", AutocompleteLimit).Return([]string{"plan", "planning"}, nil).Once()
	names, err := indexer.Autocomplete(context.Background(), "#pl")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan", "planning"}, names)

	repo.On("TagsWithPrefix", mock.Anything, "", AutocompleteLimit).Return([]string{"q3", "plan", "design", "notes", "budget"}, nil).Twice()
	names, err = indexer.Autocomplete(context.Background(), " ")
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "plan", "design", "notes", "budget"}, names)
	names, err = indexer.Autocomplete(context.Background(), "#")
	require.NoError(t, err)
	assert.Len(t, names, AutocompleteLimit)
	repo.AssertExpectations(t)
}

func TestRemoveChecksOwnership(t *testing.T) {
	repo := new(mocks.ArchiveRepositoryMock)
	indexer := NewIndexer(repo, nil)

	repo.On("Get", mock.Anything, int64(10)).Return(models.ArchiveItem{ID: 10, UploaderID: 1}, nil)
	err := indexer.Remove(context.Background(), 10, 2)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	repo.On("DeleteTags", mock.Anything, int64(10)).Return(int64(2), nil).Once()
	repo.On("Delete", mock.Anything, int64(10), int64(1)).Return(nil).Once()
	require.NoError(t, indexer.Remove(context.Background(), 10, 1))
	repo.AssertExpectations(t)
}

func TestRemoveMissingItem(t *testing.T) {
	repo := new(mocks.ArchiveRepositoryMock)
	repo.On("Get", mock.Anything, int64(4)).Return(nil, apperrors.ErrNotFound).Once()

	err := NewIndexer(repo, nil).Remove(context.Background(), 4, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
