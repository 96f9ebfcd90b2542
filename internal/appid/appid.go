package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/quotaguard/quotaguard/internal/assets/appidentity"
)

func init() {
	// Explicit overrides (FULMEN_APP_IDENTITY_PATH) stay authoritative; the
	// embedded copy covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Defaults used when no identity can be loaded.
const (
	DefaultBinaryName  = "quotaguard"
	DefaultVendor      = "quotaguard"
	DefaultEnvPrefix   = "QUOTAGUARD_"
	DefaultConfigName  = "quotaguard"
	DefaultDescription = "Pre-flight quota guard for automated Claude sessions"
)

// Get returns the process app identity from gofulmen.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// Fallback returns the built-in identity.
func Fallback() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  DefaultBinaryName,
		Vendor:      DefaultVendor,
		EnvPrefix:   DefaultEnvPrefix,
		ConfigName:  DefaultConfigName,
		Description: DefaultDescription,
	}
}

// GetOrDefault loads the identity and fills any empty field from the
// built-in defaults. The error from loading, if any, is returned alongside
// a usable identity.
func GetOrDefault(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := Get(ctx)
	if err != nil || identity == nil {
		return Fallback(), err
	}

	merged := *identity
	if merged.BinaryName == "" {
		merged.BinaryName = DefaultBinaryName
	}
	if merged.Vendor == "" {
		merged.Vendor = DefaultVendor
	}
	if merged.EnvPrefix == "" {
		merged.EnvPrefix = DefaultEnvPrefix
	}
	if merged.ConfigName == "" {
		merged.ConfigName = DefaultConfigName
	}
	if merged.Description == "" {
		merged.Description = DefaultDescription
	}
	return &merged, nil
}
