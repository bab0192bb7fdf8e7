package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndListMedia(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	first := MediaRecord{
		StoredName:   "1700000000000-notes.txt",
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		SizeBytes:    42,
		Kind:         "file",
		URL:          "/uploads/1700000000000-notes.txt",
		Uploader:     "alice",
	}
	require.NoError(t, store.RecordMedia(ctx, first))

	second := MediaRecord{
		StoredName:   "clip_compressed_1700000000001.mp4",
		OriginalName: "clip.mov",
		MimeType:     "video/mp4",
		SizeBytes:    9000,
		Kind:         "video",
		URL:          "/compressed_videos/clip_compressed_1700000000001.mp4",
		Transcoded:   true,
		Uploader:     "bob",
	}
	require.NoError(t, store.RecordMedia(ctx, second))

	records, err := store.ListMedia(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest first
	require.Equal(t, "clip.mov", records[0].OriginalName)
	require.True(t, records[0].Transcoded)
	require.Equal(t, "video/mp4", records[0].MimeType)
	require.Equal(t, "notes.txt", records[1].OriginalName)
	require.False(t, records[1].Transcoded)
	require.False(t, records[0].CreatedAt.IsZero())
}

func TestGetMediaByStoredName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	missing, err := store.GetMediaByStoredName(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	record := MediaRecord{
		StoredName:   "1700000000000-cat.png",
		OriginalName: "cat.png",
		MimeType:     "image/png",
		SizeBytes:    1234,
		Kind:         "image",
		URL:          "/uploads/1700000000000-cat.png",
		Uploader:     "alice",
	}
	require.NoError(t, store.RecordMedia(ctx, record))

	found, err := store.GetMediaByStoredName(ctx, "1700000000000-cat.png")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "image/png", found.MimeType)
	require.Equal(t, int64(1234), found.SizeBytes)
}

func TestListMediaLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordMedia(ctx, MediaRecord{
			StoredName:   "file",
			OriginalName: "file",
			MimeType:     "text/plain",
			Kind:         "file",
			URL:          "/uploads/file",
			Uploader:     "alice",
		}))
	}
	records, err := store.ListMedia(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
