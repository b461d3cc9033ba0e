// Package credentials loads the four OAuth secrets from a JSON file or the
// environment. Every failure is a configuration error; deciding whether to exit is
// left to the caller.
package credentials

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/afero"

	"github.com/weiland/HourlyImage/pkg/twitter/oauth"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

const (
	// DefaultFilename is the name of the credentials file next to the images.
	DefaultFilename = ".twitterCred.json"
	// EnvPrefix prefixes every credentials variable, e.g. HOURLYIMAGE_CONSUMER_KEY.
	EnvPrefix = "HOURLYIMAGE_"
)

// Source yields a complete set of credentials.
type Source interface {
	Load(ctx context.Context) (oauth.Credentials, error)
}

// FileSource reads credentials from a JSON document:
//
//	{"consumerKey": "...", "consumerSecret": "...", "oauthToken": "...", "oauthTokenSecret": "..."}
type FileSource struct {
	Fs   afero.Fs
	Path string
}

// NewFileSource returns a FileSource on the OS filesystem.
func NewFileSource(path string) *FileSource {
	return &FileSource{Fs: afero.NewOsFs(), Path: path}
}

func (s *FileSource) Load(ctx context.Context) (oauth.Credentials, error) {
	var creds oauth.Credentials
	if s.Path == "" {
		return creds, errors.Configuration("credentials file path is empty", nil)
	}
	fs := s.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, s.Path)
	if err != nil {
		return creds, errors.Configuration(fmt.Sprintf("read credentials file %s", s.Path), err)
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return oauth.Credentials{}, errors.Configuration(fmt.Sprintf("parse credentials file %s", s.Path), err)
	}
	if err := creds.Validate(); err != nil {
		return oauth.Credentials{}, errors.Configuration(fmt.Sprintf("incomplete credentials in %s", s.Path), err)
	}

	slog.Debug("loaded credentials", "source", "file", "path", s.Path)
	return creds, nil
}

func (s *FileSource) String() string {
	return "file " + s.Path
}

// EnvSource reads credentials from prefixed environment variables.
type EnvSource struct {
	// Lookuper defaults to the process environment.
	Lookuper envconfig.Lookuper
	// Prefix defaults to EnvPrefix.
	Prefix string
}

func (s *EnvSource) Load(ctx context.Context) (oauth.Credentials, error) {
	lookuper := s.Lookuper
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}

	var creds oauth.Credentials
	if err := envconfig.ProcessWith(ctx, &creds, envconfig.PrefixLookuper(prefix, lookuper)); err != nil {
		return oauth.Credentials{}, errors.Configuration("read credentials from environment", err)
	}
	if err := creds.Validate(); err != nil {
		return oauth.Credentials{}, errors.Configuration(fmt.Sprintf("incomplete credentials in %s* variables", prefix), err)
	}

	slog.Debug("loaded credentials", "source", "env", "prefix", prefix)
	return creds, nil
}

func (s *EnvSource) String() string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	return "env " + prefix + "*"
}

// ChainSource returns the credentials of the first source that loads. When all of
// them fail, the error lists every failure.
type ChainSource []Source

func (c ChainSource) Load(ctx context.Context) (oauth.Credentials, error) {
	if len(c) == 0 {
		return oauth.Credentials{}, errors.Configuration("no credential sources configured", nil)
	}

	failures := make([]error, 0, len(c))
	for _, source := range c {
		if err := ctx.Err(); err != nil {
			return oauth.Credentials{}, errors.Configuration("load credentials", err)
		}
		creds, err := source.Load(ctx)
		if err == nil {
			return creds, nil
		}
		slog.Debug("credential source failed", "source", source, "error", err)
		failures = append(failures, fmt.Errorf("%v: %w", source, err))
	}
	return oauth.Credentials{}, errors.Configuration("no credential source succeeded", stderrors.Join(failures...))
}
