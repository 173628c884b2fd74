// Package local reads the prebuilt application shell from the local
// filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures where the built shell lives.
type Config struct {
	// Path is the built index.html, e.g. dist/index.html.
	Path string `mapstructure:"path" yaml:"path"`
}

// ShellSource loads the shell from disk on every call, so a redeployed build
// is picked up without a restart.
type ShellSource struct {
	path string
}

// New validates cfg. The file itself may not exist yet; Load reports that.
func New(cfg Config) (*ShellSource, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("shell path is required")
	}
	info, err := os.Stat(cfg.Path)
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("shell path %s is a directory", cfg.Path)
	}
	return &ShellSource{path: filepath.Clean(cfg.Path)}, nil
}

// Load returns the shell contents.
func (s *ShellSource) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read shell: %w", err)
	}
	return data, nil
}

// Path reports the file being served.
func (s *ShellSource) Path() string {
	return s.path
}
