package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".shopchat"

// Paths holds resolved filesystem paths for shopchat data.
type Paths struct {
	Base   string // ~/.shopchat
	Config string // ~/.shopchat/config.yaml
	DB     string // ~/.shopchat/shopchat.db
}

// ResolvePaths computes all standard paths from the home directory.
// If SHOPCHAT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("SHOPCHAT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		DB:     filepath.Join(base, "shopchat.db"),
	}, nil
}

// EnsureDirs creates the base directory if it doesn't exist.
func (p Paths) EnsureDirs() error {
	return os.MkdirAll(p.Base, 0o700)
}
