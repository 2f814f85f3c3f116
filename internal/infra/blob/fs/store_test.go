package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"clinicdesk/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "alpha/data.json", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "alpha/data.json" || info.Size != 5 || info.ETag == "" || info.ContentType != "text/plain" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "alpha/data.json", bytes.NewReader([]byte("replaced")), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	h, err := store.Head(ctx, "alpha/data.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.Size != 8 || h.ContentType != "application/json" {
		t.Fatalf("unexpected head %+v", h)
	}
	_, rc, err := store.Get(ctx, "alpha/data.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "replaced" {
		t.Fatalf("unexpected content %q", b)
	}
	list, err := store.List(ctx, "alpha/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "alpha/data.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	ok, err := store.Delete(ctx, "alpha/data.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "alpha/data.json")
	if err != nil || ok {
		t.Fatalf("second delete should be false")
	}
}

func TestStore_PutLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for i := 0; i < 3; i++ {
		if _, err := store.Put(ctx, "doc.json", bytes.NewReader([]byte(fmt.Sprintf(`{"n":%d}`, i))), core.PutOptions{}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Fatalf("expected only the document on disk, got %v", entries)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStore_FailedPutKeepsPreviousContent(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "doc.json", bytes.NewReader([]byte("v1")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "doc.json", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected write error")
	}
	b, err := os.ReadFile(filepath.Join(store.Root(), "doc.json"))
	if err != nil || string(b) != "v1" {
		t.Fatalf("expected previous content intact, got %q %v", b, err)
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("temp files must not be listed: %v %+v", err, list)
	}
}

func TestStore_MissingKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Head(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_PathTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"../escape.txt", "/abs.txt", "  "} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != "." || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %+v", store)
	}
}

func TestStore_ListScopesToPrefixDirectory(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if list, err := store.List(ctx, "backups/"); err != nil || len(list) != 0 {
		t.Fatalf("expected empty listing for missing directory: %v %+v", err, list)
	}
	for _, key := range []string{"hms_data.json", "backups/hms_data-1.json", "backups/hms_data-2.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "backups/hms_data-1.json" {
		t.Fatalf("unexpected backups %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all blobs: %v %+v", err, all)
	}
}
