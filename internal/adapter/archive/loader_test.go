package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

const archivePayload = `latitude,longitude,brightness,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_t31,frp,daynight,type
-15.338,-55.271,330.1,1.1,1.0,2004-07-22,1345,Terra,MODIS,82,6.03,305.8,24.5,D,0
-16.100,-56.003,318.0,1.0,1.0,2004-07-25,0412,Aqua,MODIS,55,6.03,300.2,8.3,N,0
-17.450,-57.220,342.7,1.1,1.0,2004-08-02,1502,Terra,MODIS,91,6.03,310.0,41.0,D,0
`

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.csv")
	require.NoError(t, os.WriteFile(path, []byte(archivePayload), 0o644))
	return path
}

func testLoader(t *testing.T, path string) *Loader {
	t.Helper()
	start := time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC)
	end := time.Date(2004, 12, 4, 0, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoader(path, start, end, logger)
}

func TestFetch_FiltersByWindow(t *testing.T) {
	l := testLoader(t, writeArchive(t))

	start := time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC)
	end := time.Date(2004, 7, 31, 0, 0, 0, 0, time.UTC)

	result, err := l.Fetch(context.Background(), domain.SourceMODIS, start, end)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, 82, result.Records[0].Confidence)
	assert.Equal(t, 55, result.Records[1].Confidence)
}

func TestFetch_EndDateInclusive(t *testing.T) {
	l := testLoader(t, writeArchive(t))

	day := time.Date(2004, 8, 2, 0, 0, 0, 0, time.UTC)
	result, err := l.Fetch(context.Background(), domain.SourceMODIS, day, day)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 91, result.Records[0].Confidence)
}

func TestFetch_OtherSourceEmpty(t *testing.T) {
	l := testLoader(t, writeArchive(t))

	start := time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC)
	end := time.Date(2004, 7, 31, 0, 0, 0, 0, time.UTC)

	result, err := l.Fetch(context.Background(), domain.SourceVIIRSSNPP, start, end)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestFetch_MissingFileIsPermanent(t *testing.T) {
	l := testLoader(t, filepath.Join(t.TempDir(), "absent.csv"))

	day := time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC)
	_, err := l.Fetch(context.Background(), domain.SourceMODIS, day, day)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestCovers(t *testing.T) {
	l := testLoader(t, writeArchive(t))

	assert.True(t, l.Covers(time.Date(2004, 7, 22, 0, 0, 0, 0, time.UTC)))
	assert.True(t, l.Covers(time.Date(2004, 12, 4, 0, 0, 0, 0, time.UTC)))
	assert.False(t, l.Covers(time.Date(2004, 7, 21, 0, 0, 0, 0, time.UTC)))
	assert.False(t, l.Covers(time.Date(2004, 12, 5, 0, 0, 0, 0, time.UTC)))
}
