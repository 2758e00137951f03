package face

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientExtract(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantEmbedding bool
		wantExtract   bool
		wantTransient bool
	}{
		{
			name:          "single face",
			status:        http.StatusOK,
			body:          `{"embedding":[0.5,0.25,0.1],"faces_detected":1}`,
			wantEmbedding: true,
		},
		{
			name:        "no face",
			status:      http.StatusUnprocessableEntity,
			body:        `no face detected`,
			wantExtract: true,
		},
		{
			name:        "multiple faces",
			status:      http.StatusOK,
			body:        `{"embedding":[0.5],"faces_detected":2}`,
			wantExtract: true,
		},
		{
			name:        "empty embedding",
			status:      http.StatusOK,
			body:        `{"embedding":[],"faces_detected":0}`,
			wantExtract: true,
		},
		{
			name:          "server error",
			status:        http.StatusInternalServerError,
			body:          `boom`,
			wantTransient: true,
		},
		{
			name:          "malformed payload",
			status:        http.StatusOK,
			body:          `{`,
			wantTransient: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/embed" {
					t.Errorf("path = %q; want /embed", r.URL.Path)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("multipart parse: %v", err)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, 5*time.Second, false)
			emb, err := client.Extract(context.Background(), []byte("fake-jpeg"))

			if tc.wantEmbedding {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(emb) != 3 {
					t.Errorf("embedding length = %d; want 3", len(emb))
				}
				return
			}

			var extractErr *ExtractionError
			var transientErr *TransientError
			switch {
			case tc.wantExtract:
				if !errors.As(err, &extractErr) {
					t.Errorf("error = %v; want *ExtractionError", err)
				}
			case tc.wantTransient:
				if !errors.As(err, &transientErr) {
					t.Errorf("error = %v; want *TransientError", err)
				}
			}
		})
	}
}

func TestClientExtractNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, time.Second, false)
	_, err := client.Extract(context.Background(), []byte("fake-jpeg"))

	var transientErr *TransientError
	if !errors.As(err, &transientErr) {
		t.Errorf("error = %v; want *TransientError", err)
	}
}

func TestClientExtractEmptyPayload(t *testing.T) {
	client := NewClient("http://unused", time.Second, false)
	_, err := client.Extract(context.Background(), nil)

	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Errorf("error = %v; want *ExtractionError", err)
	}
}

func TestClientSkipMode(t *testing.T) {
	client := NewClient("http://unreachable", time.Second, true)
	emb, err := client.Extract(context.Background(), []byte("anything"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) == 0 {
		t.Error("skip mode should return a stub embedding")
	}
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health in skip mode: %v", err)
	}
}
