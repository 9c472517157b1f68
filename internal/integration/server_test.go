package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/auth"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
)

const (
	sharedSecret = "printer-secret"
	signingKey   = "details-signing-key"
)

// distributionServer is an in-memory build-distribution server.
type distributionServer struct {
	*httptest.Server

	mu     sync.Mutex
	builds map[build.Descriptor][]byte
}

// startDistributionServer serves POST /download and GET /buildDetails.
func startDistributionServer(t *testing.T) *distributionServer {
	t.Helper()

	srv := &distributionServer{builds: make(map[build.Descriptor][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /download", srv.download)
	mux.HandleFunc("GET /buildDetails", srv.details)

	srv.Server = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// publish registers an archive with the given files for descriptor.
func (s *distributionServer) publish(t *testing.T, descriptor build.Descriptor, files map[string]string) {
	t.Helper()

	var buffer bytes.Buffer

	writer := zip.NewWriter(&buffer)

	for name, body := range files {
		w, err := writer.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.builds[descriptor] = buffer.Bytes()
}

func (s *distributionServer) download(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(config.DefaultHeaderName) != sharedSecret {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var descriptor build.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&descriptor); err != nil || descriptor.Validate() != nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	archive, ok := s.builds[descriptor]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "No build found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(archive)
}

func (s *distributionServer) details(w http.ResponseWriter, r *http.Request) {
	authorized := r.Header.Get(config.DefaultHeaderName) == sharedSecret
	if bearer := r.Header.Get("Authorization"); bearer != "" {
		claims, err := auth.ParseSignedToken(bearer, []byte(signingKey))
		authorized = err == nil && claims.Token == sharedSecret
	}

	if !authorized {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	descriptors := make([]build.Descriptor, 0, len(s.builds))
	for descriptor := range s.builds {
		descriptors = append(descriptors, descriptor)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(descriptors)
}
