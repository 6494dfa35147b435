package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/transitweather/internal/domain"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "objects"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upload(ctx, "transit_weather/a.csv", strings.NewReader("date,ridership\n")))
	require.NoError(t, s.Upload(ctx, "transit_weather/b.csv", strings.NewReader("x")))
	require.NoError(t, s.Upload(ctx, "other/c.csv", strings.NewReader("y")))

	var buf bytes.Buffer
	require.NoError(t, s.Download(ctx, "transit_weather/a.csv", &buf))
	assert.Equal(t, "date,ridership\n", buf.String())

	objects, err := s.List(ctx, "transit_weather/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "transit_weather/a.csv", objects[0].Key)
	assert.Equal(t, int64(15), objects[0].Size)
	assert.Equal(t, "transit_weather/b.csv", objects[1].Key)

	require.NoError(t, s.Delete(ctx, "transit_weather/a.csv"))
	objects, err = s.List(ctx, "transit_weather/")
	require.NoError(t, err)
	assert.Len(t, objects, 1)

	assert.NoError(t, s.Delete(ctx, "transit_weather/a.csv"))
}

func TestLocalStore_DownloadMissing(t *testing.T) {
	s := newTestStore(t)

	err := s.Download(context.Background(), "nope.csv", io.Discard)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s := newTestStore(t)

	err := s.Upload(context.Background(), "../outside.csv", strings.NewReader("x"))
	assert.Error(t, err)
	assert.Error(t, s.Upload(context.Background(), "", strings.NewReader("x")))
}

func TestLocalStore_CanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Upload(ctx, "a.csv", strings.NewReader("x")), context.Canceled)
}

func TestNewLocalStore_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewLocalStore(file, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)

	_, err = NewLocalStore("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
