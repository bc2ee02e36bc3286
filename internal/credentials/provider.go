// Package credentials supplies the IRP API username/password to the
// pipeline without the pipeline knowing where they live. The backing
// stores mirror the desktop tool this service replaces: a .env file
// that always wins, and a local credential file the settings API can
// write to.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// Environment variable names read by EnvProvider
const (
	EnvUsername = "IRP_API_USERNAME"
	EnvPassword = "IRP_API_PASSWORD"
)

var (
	// ErrNotSet is returned when no credentials are available
	ErrNotSet = errors.New("IRP API credentials not set")

	// ErrReadOnly is returned when Set is called on a read-only source
	ErrReadOnly = errors.New("credential source is read-only")
)

// Credentials is one username/password pair
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provider exposes credential retrieval and storage. Get returns
// ErrNotSet when absent rather than empty values.
type Provider interface {
	Get() (Credentials, error)
	Set(Credentials) error
}

// EnvProvider reads credentials from process environment variables,
// optionally seeded from a .env file. It is read-only.
type EnvProvider struct{}

// NewEnvProvider loads the given .env file into the process environment
// (missing file is fine) and returns an environment-backed provider.
func NewEnvProvider(envFile string) *EnvProvider {
	if envFile != "" {
		_ = gotenv.Load(envFile)
	}
	return &EnvProvider{}
}

// Get returns credentials from the environment
func (p *EnvProvider) Get() (Credentials, error) {
	user := os.Getenv(EnvUsername)
	pass := os.Getenv(EnvPassword)
	if user == "" || pass == "" {
		return Credentials{}, ErrNotSet
	}
	return Credentials{Username: user, Password: pass}, nil
}

// Set always fails: the environment is not a writable store
func (p *EnvProvider) Set(Credentials) error {
	return ErrReadOnly
}

// FileProvider stores credentials in a mode-0600 JSON file
type FileProvider struct {
	path string
}

// NewFileProvider creates a file-backed credential store
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Get returns credentials from the file
func (p *FileProvider) Get() (Credentials, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotSet
		}
		return Credentials{}, fmt.Errorf("failed to read credential file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, ErrNotSet
	}
	return creds, nil
}

// Set writes credentials to the file, creating parent directories
func (p *FileProvider) Set(creds Credentials) error {
	if creds.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	dir := filepath.Dir(p.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create credential directory: %w", err)
		}
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Chain consults providers in order on Get and writes to the first
// writable provider on Set. Environment entries take precedence over
// the stored file, matching the desktop tool's .env-over-keyring rule.
type Chain struct {
	providers []Provider
}

// NewChain creates a provider chain
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Get returns the first available credentials in chain order
func (c *Chain) Get() (Credentials, error) {
	for _, p := range c.providers {
		creds, err := p.Get()
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrNotSet) {
			return Credentials{}, err
		}
	}
	return Credentials{}, ErrNotSet
}

// Set stores credentials in the first provider that accepts them
func (c *Chain) Set(creds Credentials) error {
	for _, p := range c.providers {
		err := p.Set(creds)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrReadOnly) {
			return err
		}
	}
	return ErrReadOnly
}
