package deepface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wow-harvester/internal/harvest"
)

const analyzerURL = "http://analyzer.local"

func newTestClient(t *testing.T, cpuOnly bool) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: analyzerURL, Timeout: time.Second, CPUOnly: cpuOnly}, nil)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func writeTestImage(t *testing.T) (string, []byte) {
	t.Helper()
	payload := []byte("jpeg-bytes")
	path := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	return path, payload
}

const singleFaceBody = `{
	"age": 41,
	"dominant_gender": "Man",
	"gender": {"Man": 99.4567, "Woman": 0.5433},
	"dominant_race": "latino hispanic",
	"race": {"latino hispanic": 77.4489},
	"dominant_emotion": "neutral",
	"emotion": {"neutral": 64.0912},
	"face_confidence": 0.987654
}`

func TestClient_Analyze_SingleObjectResponse(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		httpmock.NewStringResponder(http.StatusOK, singleFaceBody))

	faces, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.NoError(t, err)
	require.Len(t, faces, 1)
	require.Equal(t, 41, faces[0].Age)
	require.Equal(t, "Man", faces[0].DominantGender)
	require.InDelta(t, 99.4567, faces[0].GenderScores["Man"], 1e-9)
	require.InDelta(t, 0.987654, faces[0].FaceConfidence, 1e-9)
}

func TestClient_Analyze_ArrayResponse(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		httpmock.NewStringResponder(http.StatusOK, "["+singleFaceBody+","+singleFaceBody+"]"))

	faces, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.NoError(t, err)
	require.Len(t, faces, 2)
}

func TestClient_Analyze_EnvelopeResponse(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		httpmock.NewStringResponder(http.StatusOK, `{"results": [`+singleFaceBody+`]}`))

	faces, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.NoError(t, err)
	require.Len(t, faces, 1)
	require.Equal(t, "neutral", faces[0].DominantEmotion)
}

func TestClient_Analyze_RequestShape(t *testing.T) {
	client := newTestClient(t, true)
	imagePath, payload := writeTestImage(t)

	var got analyzeRequest
	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &got))
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK, singleFaceBody), nil
		})

	_, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(payload), got.Image)
	require.Equal(t, []string{"age", "gender", "race", "emotion"}, got.Actions)
	require.True(t, got.CPUOnly)
}

func TestClient_Analyze_CPUOnlyOmittedWhenOff(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NotContains(t, string(body), "cpu_only")
			return httpmock.NewStringResponse(http.StatusOK, singleFaceBody), nil
		})

	_, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.NoError(t, err)
}

func TestClient_Analyze_ServiceError(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error": "model not loaded"}`))

	_, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.ErrorContains(t, err, "analyzer returned status 500")
	require.ErrorContains(t, err, "model not loaded")
}

func TestClient_Analyze_UndecodableResponse(t *testing.T) {
	client := newTestClient(t, false)
	imagePath, _ := writeTestImage(t)

	httpmock.RegisterResponder(http.MethodPost, analyzerURL+"/analyze",
		httpmock.NewStringResponder(http.StatusOK, `"just a string"`))

	_, err := client.Analyze(context.Background(), imagePath, harvest.DefaultActions())
	require.ErrorContains(t, err, "decode analyzer result")
}

func TestClient_Analyze_MissingImage(t *testing.T) {
	client := newTestClient(t, false)

	_, err := client.Analyze(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"), harvest.DefaultActions())
	require.ErrorContains(t, err, "read image")
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{BaseURL: "not a url"}, nil)
	require.Error(t, err)
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{BaseURL: analyzerURL}, nil)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, client.httpClient.Timeout)
}
