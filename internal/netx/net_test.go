package netx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDetectImageType(t *testing.T) {
	ct, err := DetectImageType(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = DetectImageType([]byte("plain text"))
	assert.ErrorContains(t, err, "not an image")
}

func TestUploadToPresignedURL(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		var gotMethod, gotCT string
		var gotBody []byte

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		err := UploadToPresignedURL(ctx, ts.URL+"/covers/x?X-Amz-Signature=abc", "image/png", pngHeader)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "image/png", gotCT)
		assert.Equal(t, pngHeader, gotBody)
	})

	t.Run("non-200", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("SignatureDoesNotMatch"))
		}))
		defer ts.Close()

		err := UploadToPresignedURL(ctx, ts.URL, "image/png", pngHeader)
		assert.ErrorContains(t, err, "upload failed: 403")
		assert.ErrorContains(t, err, "SignatureDoesNotMatch")
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		err := UploadToPresignedURL(ctx, ts.URL, "image/png", pngHeader)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "upload failed")
	})
}
