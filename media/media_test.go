package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestCloudinary(t *testing.T, handler http.HandlerFunc) *cloudinaryHost {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h := NewCloudinaryHost("demo", "unsigned-preset")
	h.endpoint = srv.URL + "/v1_1/demo/image/upload"
	h.client = srv.Client()
	return h
}

func TestCloudinaryUpload(t *testing.T) {
	h := newTestCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("upload_preset"); got != "unsigned-preset" {
			t.Errorf("upload_preset = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "PNGDATA" {
			t.Errorf("file body = %q", data)
		}
		if header.Filename != "photo.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.cloudinary.com/demo/image/upload/photo.png"})
	})

	url, err := h.Upload(context.Background(), "photo.png", "image/png", strings.NewReader("PNGDATA"))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if url != "https://res.cloudinary.com/demo/image/upload/photo.png" {
		t.Errorf("Upload() url = %q", url)
	}
}

func TestCloudinaryUpload_Rejected(t *testing.T) {
	h := newTestCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	})

	_, err := h.Upload(context.Background(), "photo.png", "image/png", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "Upload preset not found") {
		t.Errorf("Upload() error = %v, want the host's message", err)
	}
}

func TestCloudinaryUpload_MissingURL(t *testing.T) {
	h := newTestCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{}`))
	})

	if _, err := h.Upload(context.Background(), "a.png", "", strings.NewReader("x")); err == nil {
		t.Error("Upload() should fail without secure_url")
	}
}

func TestCleanName(t *testing.T) {
	testCases := map[string]string{
		"photo.png":            "photo.png",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\a b.jpg`:  "a-b.jpg",
		"été 2024.jpg":         "-t--2024.jpg",
		"":                     "upload",
		"/":                    "upload",
	}
	for in, want := range testCases {
		if got := cleanName(in); got != want {
			t.Errorf("cleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey("My Photo.PNG")
	if !strings.HasPrefix(key, "media/") || !strings.HasSuffix(key, "-My-Photo.PNG") {
		t.Errorf("objectKey() = %q", key)
	}
	if objectKey("a.png") == objectKey("a.png") {
		t.Error("objectKey() should be unique per upload")
	}
}

func TestPublicURL(t *testing.T) {
	testCases := []struct {
		base, region, want string
	}{
		{"https://cdn.example.com/", "eu-west-3", "https://cdn.example.com/media/x.png"},
		{"", "eu-west-3", "https://bucket.s3.eu-west-3.amazonaws.com/media/x.png"},
		{"", "us-east-1", "https://bucket.s3.amazonaws.com/media/x.png"},
		{"", "", "https://bucket.s3.amazonaws.com/media/x.png"},
	}
	for _, tc := range testCases {
		if got := publicURL(tc.base, "bucket", tc.region, "media/x.png"); got != tc.want {
			t.Errorf("publicURL(%q, %q) = %q, want %q", tc.base, tc.region, got, tc.want)
		}
	}
}

func TestGetHost_NoneConfigured(t *testing.T) {
	t.Setenv("MEDIA_HOST", "")
	if h := GetHost(); h != nil {
		t.Errorf("GetHost() = %T, want nil", h)
	}
}
