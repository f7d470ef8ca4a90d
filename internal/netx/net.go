// Package netx moves cover images to object storage through presigned URLs.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const uploadTimeout = 30 * time.Second

// DetectImageType returns the content type of data, or an error when it is
// not an image.
func DetectImageType(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	if len(ct) < 6 || ct[:6] != "image/" {
		return "", fmt.Errorf("not an image: %s", ct)
	}
	return ct, nil
}

// UploadToPresignedURL PUTs body to a presigned URL. Any status other than
// 200 is an error carrying the response body.
func UploadToPresignedURL(ctx context.Context, url, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
