package csvio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

func TestReadLightCurve(t *testing.T) {
	in := `model_number,star_age_day,luminosity
1,0.0,2.0
2,0.5,
3,,4.0
4,1.0,nan
5,1.5,3.0
`
	got, err := ReadLightCurve(strings.NewReader(in), 10)
	require.NoError(t, err)

	want := domain.Series{
		{DayOffset: 0, Luminosity: 20},
		{DayOffset: 1.5, Luminosity: 30},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLightCurve_Errors(t *testing.T) {
	_, err := ReadLightCurve(strings.NewReader("day,lum\n1,2\n"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "star_age_day")

	_, err = ReadLightCurve(strings.NewReader("star_age_day,luminosity\n1,bright\n"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2 luminosity")

	_, err = ReadLightCurve(strings.NewReader(""), 1)
	require.Error(t, err)
}

func TestLoadLightCurves_SortedByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ceph-b.csv", "ceph-a.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("star_age_day,luminosity\n0,1\n1,2\n"), 0o600))
	}

	curves, err := LoadLightCurves(dir, 1)
	require.NoError(t, err)
	require.Len(t, curves, 2)
	assert.Equal(t, "ceph-a", curves[0].Name)
	assert.Equal(t, "ceph-b", curves[1].Name)
	assert.Len(t, curves[0].Samples, 2)
}

func TestLoadLightCurves_Empty(t *testing.T) {
	_, err := LoadLightCurves(t.TempDir(), 1)
	require.Error(t, err)
}

func TestWriter_RoundTrip(t *testing.T) {
	elev := 42.5
	at := time.Date(2003, 1, 16, 6, 58, 0, 0, time.UTC)
	obs := []domain.Observation{
		{RunID: "run-1", Star: "ceph-a", RA: 150.25, Dec: 30.5, DayOffset: 0.29, Time: at, Luminosity: 6.29e14, Elevation: &elev},
		{RunID: "run-1", Star: "ceph-b", RA: 149.75, Dec: 29.5, DayOffset: 0.3, Time: at.Add(time.Minute), Luminosity: 1.5e14},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.LoadBatch(context.Background(), obs[:1]))
	require.NoError(t, w.LoadBatch(context.Background(), obs[1:]))
	require.NoError(t, w.Close())

	assert.Equal(t, 1, strings.Count(buf.String(), "run_id"), "header written once")

	got, err := ReadObservations(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(obs, got); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_EmptyRunHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(observationHeader, ",")+"\n", string(data))
}
