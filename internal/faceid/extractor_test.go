package faceid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/officeflow/attendance/internal/attendance"
)

func TestExtract_PicksMostConfidentFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("expected multipart form: %v", err)
		}
		resp := faceResponse{
			FacesCount: 2,
			Faces: []faceDetection{
				{FaceIndex: 0, Embedding: []float32{0.1, 0.2}, DetScore: 0.61},
				{FaceIndex: 1, Embedding: []float32{0.9, 0.8}, DetScore: 0.97},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2)
	emb, err := client.Extract(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb[0] != 0.9 || emb[1] != 0.8 {
		t.Errorf("expected highest-score face embedding, got %v", emb)
	}
}

func TestExtract_NoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(faceResponse{FacesCount: 0})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, attendance.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
	if !attendance.IsRejection(err) {
		t.Error("no-face must be a rejection, not an internal failure")
	}
}

func TestExtract_UnprocessableMapsToNoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no face found"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, attendance.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestExtract_ServerErrorIsNotRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Extract(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected error")
	}
	if attendance.IsRejection(err) {
		t.Error("server failure must not be treated as a claim rejection")
	}
}

func TestExtract_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 1,
			Faces:      []faceDetection{{Embedding: []float32{1, 2, 3}, DetScore: 0.9}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 512)
	_, err := client.Extract(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %s, want %s", got, tt.want)
			}
		})
	}
}
