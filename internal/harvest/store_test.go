package harvest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{
			ID:              "ab12cd",
			Name:            "John Doe",
			Country:         "Honduras",
			Arrested:        "El Paso, TX",
			GangAffiliation: "MS-13",
			ConvictedOf:     []string{"Murder", "Arson"},
			PictureURL:      "https://example.org/files/wow-mugshot-ab12cd.jpg",
			PictureLocal:    "/data/mugshots/ab12cd_John-Doe.jpg",
		},
		{
			ID:          "cc33",
			Name:        "Jane Roe",
			Country:     "Mexico",
			Arrested:    "Tucson, AZ",
			ConvictedOf: []string{"Robbery"},
			PictureURL:  "https://example.org/files/wow-mugshot-cc33.jpg",
			Enrichment: &Enrichment{
				Age:            34,
				Gender:         AttributeScore{Dominant: "Woman", Confidence: 98.2},
				Race:           AttributeScore{Dominant: "latino hispanic", Confidence: 77.4},
				Emotion:        AttributeScore{Dominant: "neutral", Confidence: 64.1},
				FaceConfidence: 0.97,
			},
		},
	}
}

func TestStore_SaveThenLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "mugshots.json")
	want := sampleRecords()
	require.NoError(t, SaveStore(path, want))

	got, err := LoadStore(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStore_SaveLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mugshots.json")
	require.NoError(t, SaveStore(path, sampleRecords()))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestStore_SaveOverwritesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mugshots.json")
	require.NoError(t, SaveStore(path, sampleRecords()))
	require.NoError(t, SaveStore(path, sampleRecords()[:1]))

	got, err := LoadStore(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ab12cd", got[0].ID)
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadStore(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, ErrStoreMissing)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadStore(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrStoreMissing)
}

func TestStore_LoadEmptyArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, SaveStore(path, []Record{}))

	got, err := LoadStore(path)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRecord_EnrichmentOmittedFromJSONWhenAbsent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mugshots.json")
	require.NoError(t, SaveStore(path, sampleRecords()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), `"enrichment"`)
	require.Contains(t, string(data), `"gang_affiliation"`)
}
