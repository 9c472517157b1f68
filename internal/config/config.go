package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

// Config holds the settings shared by the agent binaries.
type Config struct {
	// ServerURL is the base URL of the build-distribution server.
	ServerURL string `yaml:"ServerUrl"`
	// DownloadEndpoint is the path, relative to ServerURL, that serves build archives.
	DownloadEndpoint string `yaml:"DownloadEndpoint,omitempty"`
	// DetailsEndpoint is the path, relative to ServerURL, that lists build metadata.
	DetailsEndpoint string `yaml:"DetailsEndpoint,omitempty"`
	// AuthToken is the shared secret pre-distributed to printers.
	AuthToken string `yaml:"AuthToken"`
	// HeaderName carries AuthToken in the static-header authentication mode.
	HeaderName string `yaml:"HeaderName,omitempty"`
	// JwtSecret is the key used to sign tokens in the signed-token mode.
	JwtSecret string `yaml:"JwtSecret,omitempty"`
	// AuthMode selects the metadata authentication strategy: "header" or "jwt".
	AuthMode string `yaml:"AuthMode,omitempty"`
	// TokenTTL bounds the lifetime of signed tokens. Zero issues tokens without expiry.
	TokenTTL time.Duration `yaml:"TokenTTL,omitempty"`
	// Timeout bounds every HTTP request including the body transfer.
	Timeout time.Duration `yaml:"Timeout,omitempty"`
	// Retries is the number of extra attempts after a transport failure.
	Retries int `yaml:"Retries,omitempty"`
	// Build describes the build this printer requests.
	Build build.Descriptor `yaml:"Build"`
	// WorkDir is the directory relative paths below are resolved against.
	// Empty means the process working directory.
	WorkDir string `yaml:"WorkDir,omitempty"`
	// ArchiveFile is where the downloaded archive is stored before extraction.
	ArchiveFile string `yaml:"ArchiveFile,omitempty"`
	// BuildDir holds the live build.
	BuildDir string `yaml:"BuildDir,omitempty"`
	// BackupDir receives the previous build's files.
	BackupDir string `yaml:"BackupDir,omitempty"`
	// LockFile marks a running update to prevent parallel runs.
	LockFile string `yaml:"LockFile,omitempty"`
	// StateFile records the last installed build.
	StateFile string `yaml:"StateFile,omitempty"`
	// StopProcesses lists executable names killed before the build is retired.
	StopProcesses []string `yaml:"StopProcesses,omitempty"`
	// StartExecutable is launched from BuildDir after a successful install.
	StartExecutable string `yaml:"StartExecutable,omitempty"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"LogLevel,omitempty"`
	// LogFile is an optional rotating log file path.
	LogFile string `yaml:"LogFile,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for agent settings.
	DefaultConfigFilename = "agent-config.yaml"

	// DefaultDotEnvFilename is the optional file with secrets loaded into the environment.
	DefaultDotEnvFilename = ".env"

	// DefaultDownloadEndpoint is the archive download path on the server.
	DefaultDownloadEndpoint = "download"

	// DefaultDetailsEndpoint is the build metadata path on the server.
	DefaultDetailsEndpoint = "buildDetails"

	// DefaultHeaderName is the header the server checks for the shared secret.
	DefaultHeaderName = "maxshap-header"

	// DefaultTimeout is the default bound of a single HTTP request.
	DefaultTimeout = 5 * time.Minute

	// DefaultArchiveFile is the default name of the downloaded archive.
	DefaultArchiveFile = "update.zip"

	// DefaultBuildDir is the default live build directory.
	DefaultBuildDir = "build"

	// DefaultBackupDir is the default backup directory.
	DefaultBackupDir = "backup"

	// DefaultLockFile is the default marker of a running update.
	DefaultLockFile = "printer-updater.lock"

	// DefaultStateFile is the default record of the installed build.
	DefaultStateFile = "installed-build.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for every directory the agent creates.
	DefaultDirPermissions = 0o755

	// AuthModeHeader sends the shared secret in HeaderName.
	AuthModeHeader = "header"

	// AuthModeJWT sends a bearer token signed with JwtSecret.
	AuthModeJWT = "jwt"
)

// Environment variables overriding values read from the settings file.
const (
	EnvServerURL = "MAXSHAPEZ_SERVER_URL"
	EnvAuthToken = "MAXSHAPEZ_AUTH_TOKEN"
	EnvJwtSecret = "MAXSHAPEZ_JWT_SECRET"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerURLRequired is returned when the server URL is missing.
	errServerURLRequired = errors.New("server URL must be provided")
	// errUnsupportedScheme is returned for server URLs that are not http(s).
	errUnsupportedScheme = errors.New("server URL must use http or https")
	// errAuthTokenRequired is returned when the shared secret is missing.
	errAuthTokenRequired = errors.New("auth token must be provided")
	// errUnknownAuthMode is returned for an unsupported authentication mode.
	errUnknownAuthMode = errors.New("unknown auth mode")
	// errJwtSecretRequired is returned when the signed-token mode has no signing key.
	errJwtSecretRequired = errors.New("jwt secret must be provided for jwt auth mode")
	// errNegativeValue is returned for negative retries or token lifetimes.
	errNegativeValue = errors.New("value must not be negative")
	// errUnknownLogLevel is returned for a log level zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates the result. Every error wraps build.ErrConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %w", build.ErrConfig, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal settings: %w", build.ErrConfig, err)
	}

	applyEnvironment(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from an optional .env file into the process
// environment. Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultDotEnvFilename
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: load %s: %w", build.ErrConfig, path, err)
	}

	return nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds the shared secret.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults. Errors wrap build.ErrConfig.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: %w", build.ErrConfig, errConfigIsNotSet)
	}

	if err := validate(cfg); err != nil {
		return fmt.Errorf("%w: %w", build.ErrConfig, err)
	}

	setDefaults(cfg)

	return nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return errServerURLRequired
	}

	serverURL, err := url.ParseRequestURI(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	if serverURL.Scheme != "http" && serverURL.Scheme != "https" {
		return fmt.Errorf("%s: %w", cfg.ServerURL, errUnsupportedScheme)
	}

	if cfg.AuthToken == "" {
		return errAuthTokenRequired
	}

	switch cfg.AuthMode {
	case "":
	case AuthModeHeader:
	case AuthModeJWT:
		if cfg.JwtSecret == "" {
			return errJwtSecretRequired
		}
	default:
		return fmt.Errorf("%w: %s", errUnknownAuthMode, cfg.AuthMode)
	}

	if cfg.Retries < 0 {
		return fmt.Errorf("retries %d: %w", cfg.Retries, errNegativeValue)
	}

	if cfg.TokenTTL < 0 {
		return fmt.Errorf("token TTL %s: %w", cfg.TokenTTL, errNegativeValue)
	}

	if cfg.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%w: %s", errUnknownLogLevel, cfg.LogLevel)
		}
	}

	return nil
}

func setDefaults(cfg *Config) {
	setDefault(&cfg.DownloadEndpoint, DefaultDownloadEndpoint)
	setDefault(&cfg.DetailsEndpoint, DefaultDetailsEndpoint)
	setDefault(&cfg.HeaderName, DefaultHeaderName)
	setDefault(&cfg.ArchiveFile, DefaultArchiveFile)
	setDefault(&cfg.BuildDir, DefaultBuildDir)
	setDefault(&cfg.BackupDir, DefaultBackupDir)
	setDefault(&cfg.LockFile, DefaultLockFile)
	setDefault(&cfg.StateFile, DefaultStateFile)

	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthModeHeader
		if cfg.JwtSecret != "" {
			cfg.AuthMode = AuthModeJWT
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// applyEnvironment lets deployment secrets override the settings file.
func applyEnvironment(cfg *Config) {
	if value, ok := os.LookupEnv(EnvServerURL); ok && value != "" {
		cfg.ServerURL = value
	}

	if value, ok := os.LookupEnv(EnvAuthToken); ok && value != "" {
		cfg.AuthToken = value
	}

	if value, ok := os.LookupEnv(EnvJwtSecret); ok && value != "" {
		cfg.JwtSecret = value
	}
}

// Path resolves name against WorkDir unless it is absolute.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) || c.WorkDir == "" {
		return filepath.Clean(name)
	}

	return filepath.Join(c.WorkDir, name)
}

// ArchivePath returns the resolved location of the downloaded archive.
func (c *Config) ArchivePath() string {
	return c.Path(c.ArchiveFile)
}

// BuildPath returns the resolved live build directory.
func (c *Config) BuildPath() string {
	return c.Path(c.BuildDir)
}

// BackupPath returns the resolved backup directory.
func (c *Config) BackupPath() string {
	return c.Path(c.BackupDir)
}

// LockPath returns the resolved update marker location.
func (c *Config) LockPath() string {
	return c.Path(c.LockFile)
}

// StatePath returns the resolved installed-build record location.
func (c *Config) StatePath() string {
	return c.Path(c.StateFile)
}
