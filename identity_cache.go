package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	identityCacheFile = "user_cache.json"
	DefaultCacheTTL   = 24 * time.Hour
)

// IdentityCacheEntry is one complete snapshot of the workspace members
type IdentityCacheEntry struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Users     map[string]string `json:"users"`
}

// IdentityCache maps member ids to display names, backed by a JSON file
type IdentityCache struct {
	api      SlackAPI
	filePath string
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewIdentityCache creates the cache directory and returns a cache stored in it
func NewIdentityCache(api SlackAPI, cacheDir string, ttl time.Duration, logger zerolog.Logger) (*IdentityCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &IdentityCache{
		api:      api,
		filePath: filepath.Join(cacheDir, identityCacheFile),
		ttl:      ttl,
		logger:   logger.With().Str("component", "identity-cache").Logger(),
		now:      time.Now,
	}, nil
}

// Resolve returns the member mapping, fetching from Slack only when the
// stored snapshot is missing or older than the TTL. It never fails: on a
// fetch error it falls back to the stored snapshot, then to an empty map.
func (ic *IdentityCache) Resolve(ctx context.Context) map[string]string {
	entry, err := ic.load()
	if err != nil && !os.IsNotExist(err) {
		ic.logger.Warn().Err(err).Str("path", ic.filePath).Msg("Failed to read identity cache, ignoring it")
	}

	if entry != nil && ic.isFresh(entry) {
		ic.logger.Info().
			Int("users", len(entry.Users)).
			Time("fetchedAt", entry.FetchedAt).
			Msg("Using cached user mapping")
		return entry.Users
	}

	ic.logger.Info().Msg("Fetching user list from Slack")
	users, err := ic.api.GetUsersContext(ctx)
	if err != nil {
		ic.logger.Error().Err(err).Msg("Failed to fetch user list")
		if entry != nil {
			ic.logger.Warn().
				Time("fetchedAt", entry.FetchedAt).
				Str("age", humanize.RelTime(entry.FetchedAt, ic.now(), "old", "ahead")).
				Msg("Using expired user cache due to API error")
			return entry.Users
		}
		return map[string]string{}
	}

	mapping := make(map[string]string, len(users))
	for _, user := range users {
		mapping[user.ID] = memberName(user)
	}

	fresh := IdentityCacheEntry{FetchedAt: ic.now(), Users: mapping}
	if err := ic.save(fresh); err != nil {
		ic.logger.Error().Err(err).Str("path", ic.filePath).Msg("Failed to save user cache")
	} else {
		ic.logger.Info().Int("users", len(mapping)).Msg("Fetched and cached user mapping")
	}

	return mapping
}

// isFresh reports whether the entry is younger than the TTL. A snapshot
// stamped in the future is treated as stale.
func (ic *IdentityCache) isFresh(entry *IdentityCacheEntry) bool {
	now := ic.now()
	if entry.FetchedAt.After(now) {
		return false
	}
	return now.Sub(entry.FetchedAt) < ic.ttl
}

// memberName picks display name, then real name, then account name, then the id
func memberName(user slack.User) string {
	for _, name := range []string{user.Profile.DisplayName, user.Profile.RealName, user.RealName, user.Name} {
		if name != "" {
			return name
		}
	}
	return user.ID
}

// load reads the snapshot from disk
func (ic *IdentityCache) load() (*IdentityCacheEntry, error) {
	data, err := os.ReadFile(ic.filePath)
	if err != nil {
		return nil, err
	}

	var entry IdentityCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	if entry.Users == nil || entry.FetchedAt.IsZero() {
		return nil, fmt.Errorf("cache file %s is incomplete", ic.filePath)
	}

	return &entry, nil
}

// save replaces the snapshot on disk. The new file is written next to the
// old one and renamed over it, so readers see either snapshot, never a mix.
func (ic *IdentityCache) save(entry IdentityCacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user cache: %w", err)
	}
	return writeFileAtomic(ic.filePath, data, 0644)
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
