package oauth

import stderrors "errors"

var (
	ErrMissingAppCredentials    = stderrors.New("missing consumer key or secret")
	ErrMissingAccessCredentials = stderrors.New("missing oauth token or secret")
)

// Credentials are the four secrets a signed request needs. Values are treated as
// opaque and never modified.
type Credentials struct {
	ConsumerKey      string `json:"consumerKey" env:"CONSUMER_KEY"`
	ConsumerSecret   string `json:"consumerSecret" env:"CONSUMER_SECRET"`
	OAuthToken       string `json:"oauthToken" env:"OAUTH_TOKEN"`
	OAuthTokenSecret string `json:"oauthTokenSecret" env:"OAUTH_TOKEN_SECRET"`
}

// Validate reports which group of credentials is incomplete, if any.
func (c Credentials) Validate() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return ErrMissingAppCredentials
	}
	if c.OAuthToken == "" || c.OAuthTokenSecret == "" {
		return ErrMissingAccessCredentials
	}
	return nil
}

// SigningKey returns the HMAC key for these credentials.
func (c Credentials) SigningKey() SigningKey {
	return SigningKey{ConsumerSecret: c.ConsumerSecret, TokenSecret: c.OAuthTokenSecret}
}
