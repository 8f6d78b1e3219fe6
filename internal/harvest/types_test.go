package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_Enriched(t *testing.T) {
	t.Parallel()

	require.False(t, Record{}.Enriched())
	require.True(t, Record{Enrichment: &Enrichment{}}.Enriched())
}

func TestFace_EnrichmentRounding(t *testing.T) {
	t.Parallel()

	got := testFace().Enrichment()
	require.Equal(t, 41, got.Age)
	// Attribute confidences round to one decimal, face confidence to two.
	require.Equal(t, 99.5, got.Gender.Confidence)
	require.Equal(t, 77.4, got.Race.Confidence)
	require.Equal(t, 64.1, got.Emotion.Confidence)
	require.Equal(t, 0.99, got.FaceConfidence)
}

func TestFace_EnrichmentMissingScore(t *testing.T) {
	t.Parallel()

	got := Face{DominantGender: "Man"}.Enrichment()
	require.Equal(t, "Man", got.Gender.Dominant)
	require.Zero(t, got.Gender.Confidence)
}

func TestDefaultActions(t *testing.T) {
	t.Parallel()

	require.Equal(t, []Action{ActionAge, ActionGender, ActionRace, ActionEmotion}, DefaultActions())
}
