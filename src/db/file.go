package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"hbnb/src/types"
)

// FileEngine keeps every object in memory and persists them as one JSON
// document keyed "Class.id". An empty path keeps the engine memory-only.
type FileEngine struct {
	path string

	mu      sync.RWMutex
	objects map[string]types.Object

	// saveMu orders snapshots and file replacement across concurrent saves.
	saveMu sync.Mutex
}

// OpenFile loads path if it exists.
func OpenFile(path string) (*FileEngine, error) {
	e := &FileEngine{path: path, objects: make(map[string]types.Object)}
	if path == "" {
		return e, nil
	}
	docs := make(map[string]json.RawMessage)
	if err := readJSON(path, &docs); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for key, raw := range docs {
		obj, err := decodeKeyed(key, raw)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		e.objects[key] = obj
	}
	return e, nil
}

// NewMemory returns an engine that never touches disk.
func NewMemory() *FileEngine {
	e, _ := OpenFile("")
	return e
}

func (e *FileEngine) Get(ctx context.Context, kind types.Kind, id string) (types.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	obj, ok := e.objects[types.KeyOf(kind, id)]
	e.mu.RUnlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	return clone(obj)
}

func (e *FileEngine) All(ctx context.Context, kind types.Kind) ([]types.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []types.Object
	for _, obj := range e.objects {
		if obj.Kind() != kind {
			continue
		}
		cp, err := clone(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (e *FileEngine) New(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := clone(obj)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.objects[types.Key(obj)] = cp
	e.mu.Unlock()
	return nil
}

func (e *FileEngine) Delete(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.objects, types.Key(obj))
	e.mu.Unlock()
	return nil
}

// Save writes every object to the backing file.
func (e *FileEngine) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.path == "" {
		return nil
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.RLock()
	b, err := json.MarshalIndent(e.objects, "", "  ")
	e.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.path, err)
	}
	return writeFile(e.path, b, 0o644)
}

func (e *FileEngine) Close() error { return nil }

// decodeKeyed decodes a "Class.id" entry, trusting __class__ when present.
func decodeKeyed(key string, raw []byte) (types.Object, error) {
	obj, err := types.DecodeClass(raw)
	if err == nil {
		return obj, nil
	}
	class, _, ok := strings.Cut(key, ".")
	if !ok {
		return nil, err
	}
	kind, kerr := types.ParseKind(class)
	if kerr != nil {
		return nil, err
	}
	return types.Decode(kind, raw)
}

// readJSON reads path into out; a missing file is not an error.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// writeFile replaces path with b through a temp file in the same directory.
func writeFile(path string, b []byte, mode os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ types.Engine = (*FileEngine)(nil)
