// Package file is the reference file-backed provider: one file per entry,
// named by the SHA-256 of the storage key, holding a wire entry frame with the
// key, the absolute expiry and the payload.
package file

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	pr "github.com/unkn0wn-root/tagcache/provider"
)

// Ext marks files owned by this provider. Clear and Range ignore anything else.
const Ext = ".cache"

type Config struct {
	Dir      string      // "" => os.TempDir()/tagcache
	FileMode os.FileMode // 0 => 0o600
}

type File struct {
	dir  string
	mode os.FileMode
	now  func() time.Time
}

var (
	_ pr.Provider   = (*File)(nil)
	_ pr.Enumerable = (*File)(nil)
	_ pr.Named      = (*File)(nil)
)

func New(cfg Config) (*File, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tagcache")
	}
	mode := cfg.FileMode
	if mode == 0 {
		mode = 0o600
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file provider: create dir: %w", err)
	}
	return &File{dir: dir, mode: mode, now: time.Now}, nil
}

func (p *File) Name() string { return "file" }

// Dir returns the directory holding the entry files.
func (p *File) Dir() string { return p.dir }

func (p *File) path(key string) string {
	return filepath.Join(p.dir, keys.Full(key)+Ext)
}

func (p *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := p.path(key)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e, err := wire.DecodeEntry(b)
	if err != nil || e.Key != key {
		_ = os.Remove(path) // self-heal corrupt
		return nil, false, nil
	}
	if pr.Expired(e.ExpiresAt, p.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Payload, true, nil
}

func (p *File) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	path := p.path(key)
	if ttl <= 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return true, nil
	}
	b, err := wire.EncodeEntry(wire.Entry{
		Key:       key,
		ExpiresAt: p.now().Add(ttl).UnixNano(),
		Payload:   value,
	})
	if err != nil {
		return false, err
	}
	if err := p.writeAtomic(path, b); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes to a temp file in the same dir and renames it into place
// so readers never observe a partial entry.
func (p *File) writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(p.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, p.mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (p *File) Del(_ context.Context, key string) error {
	err := os.Remove(p.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reads only the frame header, never the payload.
func (p *File) Exists(_ context.Context, key string) (bool, error) {
	path := p.path(key)
	h, err := readHeader(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		if errors.Is(err, wire.ErrCorrupt) {
			_ = os.Remove(path)
			return false, nil
		}
		return false, err
	}
	if h.Key != key {
		_ = os.Remove(path)
		return false, nil
	}
	if pr.Expired(h.ExpiresAt, p.now()) {
		_ = os.Remove(path)
		return false, nil
	}
	return true, nil
}

func (p *File) Clear(_ context.Context) error {
	names, err := p.entryFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := os.Remove(filepath.Join(p.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Range visits every live entry's key. Unreadable or corrupt files are skipped.
func (p *File) Range(ctx context.Context, fn func(key string) bool) error {
	names, err := p.entryFiles()
	if err != nil {
		return err
	}
	now := p.now()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := readHeader(filepath.Join(p.dir, name))
		if err != nil || pr.Expired(h.ExpiresAt, now) {
			continue
		}
		if !fn(h.Key) {
			return nil
		}
	}
	return nil
}

func (p *File) Close(_ context.Context) error { return nil }

func (p *File) entryFiles() ([]string, error) {
	des, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(des))
	for _, de := range des {
		if de.Type().IsRegular() && strings.HasSuffix(de.Name(), Ext) {
			out = append(out, de.Name())
		}
	}
	return out, nil
}

// readHeader reads the fixed prefix, learns the key length and then reads
// just enough to decode key and expiry.
func readHeader(path string) (wire.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.Entry{}, err
	}
	defer f.Close()

	fixed := make([]byte, wire.HeaderSize(0))
	if _, err := io.ReadFull(f, fixed); err != nil {
		return wire.Entry{}, wire.ErrCorrupt
	}
	klen := int(binary.BigEndian.Uint16(fixed[len(fixed)-2:]))
	buf := make([]byte, wire.HeaderSize(klen))
	copy(buf, fixed)
	if _, err := io.ReadFull(f, buf[len(fixed):]); err != nil {
		return wire.Entry{}, wire.ErrCorrupt
	}
	return wire.DecodeEntryHeader(buf)
}
