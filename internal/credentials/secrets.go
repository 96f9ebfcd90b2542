// Package credentials resolves the claude.ai session key and organization id
// from the environment, falling back to a shell-export-style secrets file.
package credentials

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets holds KEY=VALUE pairs read from a secrets file.
type Secrets map[string]string

// DefaultSecretsPath returns ~/.claude/secrets, or "" when the home
// directory cannot be resolved.
func DefaultSecretsPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".claude", "secrets")
}

// LoadSecrets reads the secrets file at path. A missing file is not an error
// and yields an empty map.
func LoadSecrets(path string) (Secrets, error) {
	if strings.TrimSpace(path) == "" {
		return Secrets{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, nil
		}
		return Secrets{}, err
	}
	defer f.Close() // nolint:errcheck // read-only handle

	return ParseSecrets(f)
}

// ParseSecrets parses `KEY=VALUE` lines, each optionally prefixed with
// `export ` and optionally quoted. Values are literal: no $VAR expansion and
// no escape processing. Lines without `=` are skipped.
func ParseSecrets(r io.Reader) (Secrets, error) {
	secrets := Secrets{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		secrets[key] = value
	}
	if err := scanner.Err(); err != nil {
		return secrets, err
	}

	return secrets, nil
}

func parseLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if !strings.Contains(line, "=") {
		return "", "", false
	}

	// Values are taken literally: godotenv would expand $VAR and unescape
	// backslashes, so those lines skip it.
	_, rawValue, _ := strings.Cut(line, "=")
	if !strings.ContainsAny(rawValue, `$\`) {
		if parsed, err := godotenv.Unmarshal(line); err == nil && len(parsed) == 1 {
			for key, value := range parsed {
				return key, value, true
			}
		}
	}

	// Lines godotenv rejects (mismatched quotes, odd key characters) are split
	// on the first '=' with surrounding quotes trimmed.
	line = strings.TrimPrefix(line, "export ")
	key, value, _ := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(value, `'"`), true
}
