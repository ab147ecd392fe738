package kv_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/nachokelkar/audio-semantics/pkg/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	b, err := kv.NewBadger(kv.BadgerOptions{
		InMemory: true,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	m := kv.NewMemory(nil)
	t.Cleanup(func() {
		b.Close()
		m.Close()
	})
	return map[string]kv.Store{"memory": m, "badger": b}
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"run", "abc", "meta"}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, key, []byte("v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "v2" {
				t.Fatalf("Get = %q, want v2", got)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get after delete: err = %v", err)
			}
			if err := s.Delete(ctx, kv.Key{"no", "such"}); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.BatchSet(ctx, []kv.Entry{
				{Key: kv.Key{"run", "a", "level", "0002"}, Value: []byte("2")},
				{Key: kv.Key{"run", "a", "level", "0001"}, Value: []byte("1")},
				{Key: kv.Key{"run", "a", "meta"}, Value: []byte("m")},
				{Key: kv.Key{"run", "ab", "meta"}, Value: []byte("x")},
			})
			if err != nil {
				t.Fatalf("BatchSet: %v", err)
			}

			var keys []string
			for e, err := range s.List(ctx, kv.Key{"run", "a"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				keys = append(keys, e.Key.String())
			}
			want := []string{"run:a:level:0001", "run:a:level:0002", "run:a:meta"}
			if !slices.Equal(keys, want) {
				t.Errorf("List = %v, want %v", keys, want)
			}

			n := 0
			for _, err := range s.List(ctx, nil) {
				if err != nil {
					t.Fatalf("List all: %v", err)
				}
				n++
			}
			if n != 4 {
				t.Errorf("List all = %d entries, want 4", n)
			}

			n = 0
			for range s.List(ctx, kv.Key{"run"}) {
				n++
				break
			}
			if n != 1 {
				t.Errorf("early break visited %d", n)
			}
		})
	}
}

func TestMemoryCopies(t *testing.T) {
	ctx := context.Background()
	m := kv.NewMemory(&kv.Options{Separator: '/'})
	v := []byte("abc")
	m.Set(ctx, kv.Key{"a", "b"}, v)
	v[0] = 'X'
	got, _ := m.Get(ctx, kv.Key{"a", "b"})
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
	for e := range m.List(ctx, kv.Key{"a"}) {
		if !slices.Equal(e.Key, kv.Key{"a", "b"}) {
			t.Errorf("key = %v", e.Key)
		}
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error without directory")
	}
}
