package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeries = `
series:
  - id: math-g1
    title: Math
    group: G1
    teacher_id: tch-1
    teacher_name: Bu Sari
    days: [mon, thursday]
    time: "18:00"
  - id: eng-g2
    group: G2
    teacher_id: tch-1
    days: [Wed]
    time: "10:30"
`

func TestLoadSeriesCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSeries), 0o600))

	catalog, err := LoadSeriesCatalog(path)
	require.NoError(t, err)

	all := catalog.All()
	require.Len(t, all, 2)
	assert.Equal(t, "eng-g2", all[0].ID)
	assert.Equal(t, "eng-g2", all[0].Title)

	math, ok := catalog.Get("math-g1")
	require.True(t, ok)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, math.Days)
	assert.Equal(t, 18, math.Hour)

	assert.Len(t, catalog.ByGroups("G1"), 1)
	assert.Len(t, catalog.ByTeacher("tch-1"), 2)
}

func TestParseSeriesCatalogRejectsBadEntries(t *testing.T) {
	_, err := ParseSeriesCatalog([]byte("series:\n  - id: x\n    group: G\n    days: [funday]\n    time: \"10:00\"\n"))
	assert.Error(t, err)

	_, err = ParseSeriesCatalog([]byte("series:\n  - id: x\n    group: G\n    days: [mon]\n    time: noon\n"))
	assert.Error(t, err)

	_, err = ParseSeriesCatalog([]byte("series:\n  - id: x\n    group: G\n    days: [mon]\n    time: \"10:00\"\n  - id: x\n    group: G\n    days: [tue]\n    time: \"10:00\"\n"))
	assert.Error(t, err)
}
