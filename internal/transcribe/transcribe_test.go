// ABOUTME: Tests for the transcription client.
// ABOUTME: Covers the size cap and the multipart request shape.

package transcribe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeCap(t *testing.T) {
	h := NewHTTP("http://unused", "", "", 4, nil)

	_, err := h.Transcribe(t.Context(), []byte("too big"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		w.Write([]byte(`{"text": "mine some iron"}`))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, "key", "", 0, nil)
	text, err := h.Transcribe(t.Context(), []byte("fake-wav-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "mine some iron", text)
}

func TestTranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "unsupported format"}}`))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, "key", "", 0, nil)
	_, err := h.Transcribe(t.Context(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}
