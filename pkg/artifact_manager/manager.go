// Package artifact_manager keeps raw scrape results and processed batches on
// disk so a later run can reuse a fresh scrape instead of hitting the
// platform again.
package artifact_manager

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/models"
)

const (
	DefaultRawDir       = "data/raw"
	DefaultProcessedDir = "data/processed"
)

// RawSnapshot is the on-disk form of one platform scrape.
type RawSnapshot struct {
	AppName   string             `json:"app_name"`
	Platform  string             `json:"platform"`
	ScrapedAt time.Time          `json:"scraped_at"`
	Reviews   []models.RawReview `json:"reviews"`
}

// Manager handles storage and retrieval of scrape artifacts.
type Manager struct {
	rawDir       string
	processedDir string
	maxAge       time.Duration // raw snapshots older than this are not reused
}

// NewManager creates the raw and processed directories if needed. A maxAge
// of zero or less disables reuse of raw snapshots.
func NewManager(paths models.DataPaths, maxAge time.Duration) (*Manager, error) {
	m := &Manager{rawDir: paths.Raw, processedDir: paths.Processed, maxAge: maxAge}
	if m.rawDir == "" {
		m.rawDir = DefaultRawDir
	}
	if m.processedDir == "" {
		m.processedDir = DefaultProcessedDir
	}

	if err := os.MkdirAll(m.rawDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create raw directory: %w", err)
	}
	if err := os.MkdirAll(m.processedDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create processed directory: %w", err)
	}
	return m, nil
}

// MaxAge returns the configured max age for raw snapshots.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

var invalidSlugChar = regexp.MustCompile(`[^a-z0-9\-_]+`)

// sanitizeSlug creates a filesystem-safe slug from an app name.
func sanitizeSlug(name string) string {
	slug := invalidSlugChar.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "app"
	}
	return slug
}

// getShortHash generates a short, stable hash so that names differing only
// in punctuation or case get separate files.
func getShortHash(appName, platform string) string {
	hash := sha256.Sum256([]byte(appName + "|" + platform))
	return fmt.Sprintf("%x", hash[:6])
}

// ArtifactPath returns the snapshot path for an app/platform pair.
// Example: data/raw/day_one_reddit-1a2b3c4d5e6f.json
func ArtifactPath(dir, appName, platform string) string {
	filename := fmt.Sprintf("%s_%s-%s.json", sanitizeSlug(appName), platform, getShortHash(appName, platform))
	return filepath.Join(dir, filename)
}

// RawPath returns where the raw snapshot for appName/platform lives.
func (m *Manager) RawPath(appName, platform string) string {
	return ArtifactPath(m.rawDir, appName, platform)
}

// ProcessedPath returns where the processed batch for appName/platform lives.
func (m *Manager) ProcessedPath(appName, platform string) string {
	return ArtifactPath(m.processedDir, appName, platform)
}

// GetRaw returns the stored raw snapshot if it exists and is fresh.
func (m *Manager) GetRaw(appName, platform string) (*RawSnapshot, bool, error) {
	if m.maxAge <= 0 {
		return nil, false, nil
	}

	filePath := m.RawPath(appName, platform)
	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil // Not found
	}
	if err != nil {
		return nil, false, fmt.Errorf("error statting raw snapshot: %w", err)
	}
	if time.Since(info.ModTime()) > m.maxAge {
		return nil, false, nil // Stale
	}

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, false, fmt.Errorf("error reading raw snapshot: %w", err)
	}
	var snap RawSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("error decoding raw snapshot %s: %w", filePath, err)
	}
	return &snap, true, nil
}

// SetRaw stores a raw snapshot and returns its path.
func (m *Manager) SetRaw(snap RawSnapshot) (string, error) {
	filePath := m.RawPath(snap.AppName, snap.Platform)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode raw snapshot: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write raw snapshot: %w", err)
	}
	return filePath, nil
}
