package metadata

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/auth"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

const (
	testToken      = "printer-secret"
	testSigningKey = "signing-key"
	catalogue      = `{"builds":[{"printer_type":"Prime","build_number":12}]}`
)

// newDetailsServer accepts either the static header or a bearer token signed with testSigningKey.
func newDetailsServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/buildDetails" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authorized := r.Header.Get(config.DefaultHeaderName) == testToken
		if bearer := r.Header.Get("Authorization"); bearer != "" {
			claims, err := auth.ParseSignedToken(bearer, []byte(testSigningKey))
			authorized = err == nil && claims.Token == testToken
		}

		if !authorized {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		_, _ = w.Write([]byte(catalogue))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// TestFetch_AuthModes verifies both strategies reach the endpoint and the body is returned unparsed.
func TestFetch_AuthModes(t *testing.T) {
	t.Parallel()

	srv := newDetailsServer(t)

	for _, mode := range []string{config.AuthModeHeader, config.AuthModeJWT} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{
				ServerURL: srv.URL,
				AuthToken: testToken,
				JwtSecret: testSigningKey,
				AuthMode:  mode,
			}

			body, err := Fetch(t.Context(), cfg)
			require.NoError(t, err)
			require.JSONEq(t, catalogue, string(body))
		})
	}
}

// TestFetch_Rejected verifies wrong credentials surface as a fetch error.
func TestFetch_Rejected(t *testing.T) {
	t.Parallel()

	srv := newDetailsServer(t)

	testCases := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "wrong header",
			cfg:  &config.Config{ServerURL: srv.URL, AuthToken: "wrong"},
		},
		{
			name: "wrong signing key",
			cfg:  &config.Config{ServerURL: srv.URL, AuthToken: testToken, JwtSecret: "other-key"},
		},
		{
			name: "unknown endpoint",
			cfg:  &config.Config{ServerURL: srv.URL, AuthToken: testToken, DetailsEndpoint: "missing"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Fetch(t.Context(), tc.cfg)
			require.ErrorIs(t, err, build.ErrFetch)
		})
	}
}

// TestFetch_InvalidConfig verifies configuration problems are reported before any request.
func TestFetch_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := Fetch(t.Context(), &config.Config{ServerURL: "http://127.0.0.1:1", AuthToken: testToken, AuthMode: "jwt"})
	require.ErrorIs(t, err, build.ErrConfig)

	_, err = Fetch(t.Context(), nil)
	require.ErrorIs(t, err, build.ErrConfig)
}

// TestRun_WritesBodyWithNewline verifies the command prints the raw body and honours the auth override.
// It is not parallel because Run reconfigures the global logger.
func TestRun_WritesBodyWithNewline(t *testing.T) {
	previous := logger.Logger()
	previousLevel := logger.Level()

	t.Cleanup(func() {
		logger.SetLogger(previous)
		logger.SetLevel(previousLevel)
	})

	srv := newDetailsServer(t)
	dir := t.TempDir()

	contents, err := yaml.Marshal(&config.Config{
		ServerURL: srv.URL,
		AuthToken: testToken,
		JwtSecret: testSigningKey,
		AuthMode:  config.AuthModeHeader,
	})
	require.NoError(t, err)

	configPath := filepath.Join(dir, "agent-config.yaml")
	require.NoError(t, os.WriteFile(configPath, contents, 0o600))

	var output bytes.Buffer

	err = Run(t.Context(), &Options{
		ConfigPath: configPath,
		DotEnvPath: filepath.Join(dir, ".env"),
		AuthMode:   config.AuthModeJWT,
		Output:     &output,
	})
	require.NoError(t, err)
	require.Equal(t, catalogue+"\n", output.String())
}
