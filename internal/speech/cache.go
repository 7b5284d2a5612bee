package speech

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Cache stores synthesized audio on disk, keyed by a deterministic
// fingerprint of (call SID, reply text). Identical pairs always resolve to
// the same file, so a webhook redelivered for the same turn never triggers a
// second synthesis call.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("speech cache: create dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Fingerprint derives the cache key for one (call SID, reply text) pair.
// The full text feeds the hash, so distinct replies never collide.
func Fingerprint(callSID, text string) string {
	sum := md5.Sum([]byte(callSID + "_" + text))
	return hex.EncodeToString(sum[:])
}

// Filename returns the artifact filename for one (call SID, reply text) pair.
func (c *Cache) Filename(callSID, text string) string {
	return fmt.Sprintf("%s_%s.mp3", callSID, Fingerprint(callSID, text))
}

// Path resolves a filename inside the cache directory. The base name is
// taken first so request-supplied names cannot traverse out of the dir.
func (c *Cache) Path(filename string) string {
	return filepath.Join(c.dir, filepath.Base(filename))
}

// Exists reports whether the artifact is already on disk.
func (c *Cache) Exists(filename string) bool {
	info, err := os.Stat(c.Path(filename))
	return err == nil && !info.IsDir()
}

// Put writes the audio blob. The write goes through a temp file and rename so
// concurrent writers of the same fingerprint leave a complete artifact;
// a double write of identical content is harmless.
func (c *Cache) Put(filename string, audio []byte) error {
	path := c.Path(filename)
	tmp, err := os.CreateTemp(c.dir, ".tmp-audio-*")
	if err != nil {
		return fmt.Errorf("speech cache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("speech cache: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("speech cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("speech cache: rename: %w", err)
	}
	return nil
}

// Read returns the stored artifact bytes.
func (c *Cache) Read(filename string) ([]byte, error) {
	data, err := os.ReadFile(c.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("speech cache: read %s: %w", filename, err)
	}
	return data, nil
}
