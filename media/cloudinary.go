package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const cloudinaryAPI = "https://api.cloudinary.com/v1_1"

type cloudinaryHost struct {
	endpoint string
	preset   string
	client   *http.Client
}

// NewCloudinaryHost performs unsigned uploads with an upload preset.
func NewCloudinaryHost(cloudName, uploadPreset string) *cloudinaryHost {
	return &cloudinaryHost{
		endpoint: fmt.Sprintf("%s/%s/image/upload", cloudinaryAPI, cloudName),
		preset:   uploadPreset,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *cloudinaryHost) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	log := logrus.WithFields(logrus.Fields{"endpoint": h.endpoint, "name": name})

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, h.preset, name, body)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		log.WithError(err).Error("Failed to reach cloudinary")
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	defer resp.Body.Close()

	var out cloudinaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("cloudinary upload: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		log.WithField("status", resp.StatusCode).Error("Cloudinary rejected upload")
		return "", fmt.Errorf("cloudinary upload: %s", msg)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload: response has no secure_url")
	}
	log.Info("Media uploaded")
	return out.SecureURL, nil
}

func writeUploadForm(mw *multipart.Writer, preset, name string, body io.Reader) error {
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", cleanName(name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}
