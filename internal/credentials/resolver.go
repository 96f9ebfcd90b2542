package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by the resolver.
const (
	EnvSessionKey = "CLAUDE_SESSION_KEY"
	EnvOrgID      = "CLAUDE_ORG_ID"
)

var (
	// ErrMissingSessionKey means no session key was found in env or file.
	ErrMissingSessionKey = errors.New("no " + EnvSessionKey + " set")
	// ErrMissingOrgID means no organization id was found in env or file.
	ErrMissingOrgID = errors.New("no " + EnvOrgID + " set")
)

// Credentials identify a claude.ai session and organization.
type Credentials struct {
	SessionKey string
	OrgID      string
}

// Resolver looks up credentials, preferring environment variables over the
// secrets file.
type Resolver struct {
	SecretsPath string
	LookupEnv   func(string) (string, bool)
}

// NewResolver returns a resolver reading the process environment and the
// given secrets file.
func NewResolver(secretsPath string) *Resolver {
	return &Resolver{SecretsPath: secretsPath, LookupEnv: os.LookupEnv}
}

// Resolve returns the credentials or one of ErrMissingSessionKey /
// ErrMissingOrgID. A secrets file that cannot be read is treated as empty;
// its error is attached to the missing-credential error.
func (r *Resolver) Resolve() (Credentials, error) {
	var path string
	if r != nil {
		path = r.SecretsPath
	}

	secrets, loadErr := LoadSecrets(path)

	creds := Credentials{
		SessionKey: r.value(EnvSessionKey, secrets),
		OrgID:      r.value(EnvOrgID, secrets),
	}

	var missing error
	switch {
	case creds.SessionKey == "":
		missing = ErrMissingSessionKey
	case creds.OrgID == "":
		missing = ErrMissingOrgID
	}
	if missing == nil {
		return creds, nil
	}
	if loadErr != nil {
		return Credentials{}, fmt.Errorf("%w (secrets file %s: %v)", missing, path, loadErr)
	}
	return Credentials{}, missing
}

func (r *Resolver) value(key string, secrets Secrets) string {
	lookup := os.LookupEnv
	if r != nil && r.LookupEnv != nil {
		lookup = r.LookupEnv
	}
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return secrets[key]
}
