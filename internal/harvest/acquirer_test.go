package harvest

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquirer_Acquire_WritesDecodedPayload(t *testing.T) {
	t.Parallel()

	payload := []byte("jpeg-bytes")
	session := &fakeSession{
		images: map[string]string{
			"https://example.org/pic.jpg": base64.StdEncoding.EncodeToString(payload),
		},
	}
	a := NewAcquirer(session, 0, nil)

	dest := filepath.Join(t.TempDir(), "mugshots", "ab12cd_John-Doe.jpg")
	require.NoError(t, a.Acquire(context.Background(), "https://example.org/pic.jpg", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, err = os.Stat(dest + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestAcquirer_Acquire_EmptyPayload(t *testing.T) {
	t.Parallel()

	session := &fakeSession{images: map[string]string{"https://example.org/pic.jpg": ""}}
	a := NewAcquirer(session, 0, nil)

	err := a.Acquire(context.Background(), "https://example.org/pic.jpg", filepath.Join(t.TempDir(), "x.jpg"))
	require.ErrorContains(t, err, "empty image payload")
}

func TestAcquirer_Acquire_InvalidBase64(t *testing.T) {
	t.Parallel()

	session := &fakeSession{images: map[string]string{"https://example.org/pic.jpg": "!!! not base64 !!!"}}
	a := NewAcquirer(session, 0, nil)

	dest := filepath.Join(t.TempDir(), "x.jpg")
	err := a.Acquire(context.Background(), "https://example.org/pic.jpg", dest)
	require.ErrorContains(t, err, "decode image payload")

	_, serr := os.Stat(dest)
	require.True(t, os.IsNotExist(serr))
}

func TestAcquirer_Acquire_FetchFailure(t *testing.T) {
	t.Parallel()

	session := &fakeSession{} // unknown URL makes FetchBase64 fail
	a := NewAcquirer(session, 0, nil)

	err := a.Acquire(context.Background(), "https://example.org/missing.jpg", filepath.Join(t.TempDir(), "x.jpg"))
	require.ErrorContains(t, err, "fetch image")
}

func TestImageFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			"jpg default",
			Record{ID: "ab12cd", Name: "John Doe", PictureURL: "https://x/pic.jpg"},
			"ab12cd_John-Doe.jpg",
		},
		{
			"png detected case insensitively",
			Record{ID: "ef56", Name: "Jane Roe", PictureURL: "https://x/PIC.PNG"},
			"ef56_Jane-Roe.png",
		},
		{
			"unknown extension falls back to jpg",
			Record{ID: "gg77", Name: "Sam Poe", PictureURL: "https://x/pic"},
			"gg77_Sam-Poe.jpg",
		},
		{
			"empty name placeholder",
			Record{ID: "hh88", Name: "", PictureURL: "https://x/pic.jpg"},
			"hh88_unknown.jpg",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ImageFilename(tc.rec))
		})
	}
}

func TestImageFilename_TruncatesLongNames(t *testing.T) {
	t.Parallel()

	rec := Record{ID: "ii99", Name: strings.Repeat("a", 200), PictureURL: "https://x/pic.jpg"}
	got := ImageFilename(rec)
	require.Equal(t, "ii99_"+strings.Repeat("a", maxFilenameNameLen)+".jpg", got)
}
