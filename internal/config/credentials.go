package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// CredentialEnv lists the environment variables each provider reads. They
// take precedence over the credentials file.
type CredentialEnv struct {
	GoogleCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleAPIKey          string `env:"READALOUD_GOOGLE_API_KEY"`
	ElevenLabsAPIKey      string `env:"ELEVENLABS_API_KEY"`
	TencentSecretID       string `env:"TENCENTCLOUD_SECRET_ID"`
	TencentSecretKey      string `env:"TENCENTCLOUD_SECRET_KEY"`
	TencentRegion         string `env:"TENCENTCLOUD_REGION"`
}

func (e CredentialEnv) forProvider(provider string) tts.Credentials {
	creds := tts.Credentials{}
	set := func(key, value string) {
		if value != "" {
			creds[key] = value
		}
	}
	switch provider {
	case tts.ProviderGoogle:
		set(tts.CredCredentialsFile, e.GoogleCredentialsFile)
		set(tts.CredAPIKey, e.GoogleAPIKey)
	case tts.ProviderElevenLabs:
		set(tts.CredAPIKey, e.ElevenLabsAPIKey)
	case tts.ProviderTencent:
		set(tts.CredSecretID, e.TencentSecretID)
		set(tts.CredSecretKey, e.TencentSecretKey)
		set(tts.CredRegion, e.TencentRegion)
	}
	return creds
}

// FileCredentials is the tts.CredentialStore backed by a YAML file with
// one mapping per provider:
//
//	google:
//	  credentials_file: ~/keys/tts.json
//	elevenlabs:
//	  api_key: sk-...
//
// The file is read on first use; a missing file is not an error.
type FileCredentials struct {
	path string
	env  CredentialEnv

	once    sync.Once
	loadErr error
	file    map[string]map[string]string
}

// NewFileCredentials reads environment overrides now and the file lazily.
func NewFileCredentials(path string) (*FileCredentials, error) {
	e, err := env.ParseAs[CredentialEnv]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	return &FileCredentials{path: path, env: e}, nil
}

// Get returns the credentials for engine. The System engine and Edge need
// none and always get an empty bundle.
func (c *FileCredentials) Get(engine string) (tts.Credentials, error) {
	c.once.Do(c.load)
	if c.loadErr != nil {
		return nil, c.loadErr
	}

	provider := strings.ToLower(engine)
	creds := tts.Credentials{}
	for k, v := range c.file[provider] {
		creds[k] = v
	}
	for k, v := range c.env.forProvider(provider) {
		creds[k] = v
	}

	if path, ok := creds[tts.CredCredentialsFile]; ok {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("credentials file %q: %w", path, err)
		}
		creds[tts.CredCredentialsFile] = expanded
	}
	return creds, nil
}

func (c *FileCredentials) load() {
	c.file = map[string]map[string]string{}
	if c.path == "" {
		return
	}
	path, err := homedir.Expand(c.path)
	if err != nil {
		c.loadErr = err
		return
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		c.loadErr = fmt.Errorf("read credentials: %w", err)
		return
	}
	if err := yaml.Unmarshal(data, &c.file); err != nil {
		c.loadErr = fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if c.file == nil {
		c.file = map[string]map[string]string{}
	}
}
