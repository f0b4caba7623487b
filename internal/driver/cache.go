package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"arendls/internal/ast"
	"arendls/internal/project"
	"arendls/internal/source"
)

// cacheSchema must change whenever the encoded ast layout changes.
const cacheSchema uint16 = 1

// DiskCache stores parsed module trees keyed by content digest. It is safe
// for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema uint16
	Module string
	Group  *ast.Group
}

// OpenDiskCache opens the cache under $XDG_CACHE_HOME/<app>, or ~/.cache/<app>.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot locate cache directory: %w", err)
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a cache rooted at dir, creating it if needed.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func cacheKey(loc source.ModuleLocation, content []byte) project.Digest {
	var schema [2]byte
	binary.LittleEndian.PutUint16(schema[:], cacheSchema)
	return project.Sum(schema[:], []byte(loc.String()), content)
}

func (c *DiskCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, "mods", key.String()+".mp")
}

// Put writes group under key, atomically replacing any previous entry.
func (c *DiskCache) Put(key project.Digest, group *ast.Group) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload := cachePayload{Schema: cacheSchema, Module: group.Location.String(), Group: group}
	if err = msgpack.NewEncoder(f).Encode(&payload); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the tree stored under key. A missing entry or one written with
// another schema is a miss.
func (c *DiskCache) Get(key project.Digest) (*ast.Group, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != cacheSchema || payload.Group == nil {
		return nil, false, nil
	}
	relinkBinders(payload.Group)
	return payload.Group, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// relinkBinders restores the sharing of one type expression among grouped
// binders such as (x y : T), which encoding turns into copies.
func relinkBinders(top *ast.Group) {
	top.Walk(func(g *ast.Group) bool {
		if g.Decl == nil {
			return true
		}
		relink(g.Decl.Params)
		for _, c := range g.Decl.Constructors {
			relink(c.Params)
		}
		for _, root := range g.Exprs() {
			ast.Inspect(root, func(e *ast.Expr) bool {
				relink(e.Binders)
				return true
			})
		}
		return true
	})
}

func relink(bs []*ast.Binding) {
	for i := 1; i < len(bs); i++ {
		prev, cur := bs[i-1].Type, bs[i].Type
		if prev == nil || cur == nil || prev == cur {
			continue
		}
		if prev.Pos.Line == cur.Pos.Line && prev.Pos.Column == cur.Pos.Column {
			bs[i].Type = prev
		}
	}
}
