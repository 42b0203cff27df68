package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nathoo/questline/store"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "saves")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "quicksave"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing key: err = %v", err)
	}
	if err := s.Set(ctx, "quicksave", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "quicksave", []byte(`{"a":2}`)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "quicksave")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("Get = %s", got)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "quicksave.json"))
	if err != nil || string(raw) != `{"a":2}` {
		t.Errorf("file on disk = %q, %v", raw, err)
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := Open(dir)
	s.Set(ctx, "b", []byte("1"))
	s.Set(ctx, "a", []byte("1"))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub.json"), 0o755)

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("Keys = %v", keys)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	s, _ := Open(t.TempDir())
	if err := s.Set(context.Background(), "../escape", []byte("x")); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("err = %v", err)
	}
	if _, err := Open(""); err == nil {
		t.Error("Open with empty dir should fail")
	}
}
