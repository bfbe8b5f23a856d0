package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCacheFile is the offline cache file name used when none is given.
const DefaultCacheFile = "license.dat"

// OfflineCache remembers the last license key and hwid the server approved.
// The file holds a single "key:hwid" line; the key may contain colons, the
// hwid may not.
type OfflineCache struct {
	path string
}

func NewOfflineCache(path string) *OfflineCache {
	if path == "" {
		path = DefaultCacheFile
	}
	return &OfflineCache{path: path}
}

// Path is the cache file location.
func (c *OfflineCache) Path() string { return c.path }

// Save records an approved pair, replacing any earlier one.
func (c *OfflineCache) Save(licenseKey, hwid string) error {
	if strings.Contains(hwid, ":") {
		return fmt.Errorf("hwid %q cannot be cached: contains ':'", hwid)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(licenseKey+":"+hwid+"\n"), 0o600); err != nil {
		return fmt.Errorf("write license cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace license cache: %w", err)
	}
	return nil
}

// Matches reports whether the cached pair equals licenseKey and hwid.
// A missing or malformed file is simply no match.
func (c *OfflineCache) Matches(licenseKey, hwid string) (bool, error) {
	b, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read license cache: %w", err)
	}

	line, _, _ := strings.Cut(string(b), "\n")
	line = strings.TrimSpace(line)
	i := strings.LastIndex(line, ":")
	if i < 0 {
		return false, nil
	}
	return line[:i] == licenseKey && line[i+1:] == hwid, nil
}
