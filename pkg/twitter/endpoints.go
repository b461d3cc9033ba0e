package twitter

import (
	"fmt"
	"net/url"
	"strings"
)

// v1.1 REST hosts. Only OAuth 1.0a user context is supported, no v2 or bearer tokens.
const (
	DefaultAPIBase    = "https://api.twitter.com"
	DefaultUploadBase = "https://upload.twitter.com"
	DefaultAPIVersion = "1.1"
	DefaultExtension  = ".json"
)

// Endpoints is the immutable host configuration of a Client. Resource URLs are
// always {base}/{APIVersion}/{path}{Extension}.
type Endpoints struct {
	APIBase    string `yaml:"apiBase"`
	UploadBase string `yaml:"uploadBase"`
	APIVersion string `yaml:"apiVersion"`
	Extension  string `yaml:"extension"`
}

// DefaultEndpoints returns the public Twitter v1.1 hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIBase:    DefaultAPIBase,
		UploadBase: DefaultUploadBase,
		APIVersion: DefaultAPIVersion,
		Extension:  DefaultExtension,
	}
}

// WithDefaults fills empty fields from DefaultEndpoints.
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.APIBase == "" {
		e.APIBase = d.APIBase
	}
	if e.UploadBase == "" {
		e.UploadBase = d.UploadBase
	}
	if e.APIVersion == "" {
		e.APIVersion = d.APIVersion
	}
	if e.Extension == "" {
		e.Extension = d.Extension
	}
	return e
}

// Validate checks that both bases are absolute URLs.
func (e Endpoints) Validate() error {
	for name, base := range map[string]string{"api base": e.APIBase, "upload base": e.UploadBase} {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidEndpoint, name, base, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q has no scheme or host", ErrInvalidEndpoint, name, base)
		}
	}
	return nil
}

// ResourceURL joins base, version, path and extension.
func (e Endpoints) ResourceURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + e.APIVersion + "/" + strings.Trim(path, "/") + e.Extension
}
