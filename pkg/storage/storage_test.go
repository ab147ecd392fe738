package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{"NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &apiError{"NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func readAll(t *testing.T, s FileStore, path string) string {
	t.Helper()
	rc, err := s.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func stores(t *testing.T) map[string]FileStore {
	t.Helper()
	local, err := NewLocal(filepath.Join(t.TempDir(), "mirror"))
	if err != nil {
		t.Fatal(err)
	}
	return map[string]FileStore{
		"local": local,
		"s3":    NewS3(newFakeS3(), "bucket", "runs"),
	}
}

func TestPutReadExists(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.Exists(ctx, "level1/clusters.txt")
			if err != nil || ok {
				t.Fatalf("Exists before Put = %v, %v", ok, err)
			}
			if _, err := s.Read(ctx, "level1/clusters.txt"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Read missing: err = %v, want ErrNotExist", err)
			}
			if err := s.Put(ctx, "level1/clusters.txt", strings.NewReader("A\trun,jump\n")); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "level1/clusters.txt", strings.NewReader("A\trun\n")); err != nil {
				t.Fatal(err)
			}
			ok, err = s.Exists(ctx, "level1/clusters.txt")
			if err != nil || !ok {
				t.Fatalf("Exists after Put = %v, %v", ok, err)
			}
			if got := readAll(t, s, "level1/clusters.txt"); got != "A\trun\n" {
				t.Errorf("Read = %q", got)
			}
		})
	}
}

func TestS3Prefix(t *testing.T) {
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "runs")
	if err := s.Put(context.Background(), "a/b.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["runs/a/b.txt"]; !ok {
		t.Errorf("objects = %v", fake.objects)
	}
}

func TestPublishDir(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"clusters.txt":       "A\trun\n",
		"corpus.txt":         "AB\n",
		"nested/results.txt": "{}",
	}
	for name, body := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(p), 0o755)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			n, err := PublishDir(context.Background(), s, src, "run1/level1")
			if err != nil {
				t.Fatal(err)
			}
			if n != len(files) {
				t.Errorf("published %d files, want %d", n, len(files))
			}
			for name, body := range files {
				if got := readAll(t, s, "run1/level1/"+name); got != body {
					t.Errorf("%s = %q, want %q", name, got, body)
				}
			}
		})
	}
}

func TestPublishDirError(t *testing.T) {
	src := t.TempDir()
	os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644)
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	if _, err := PublishDir(context.Background(), NewS3(fake, "b", ""), src, "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalPutLeavesNoTemp(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(context.Background(), "x/y.txt", strings.NewReader("y")); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "x"))
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !slices.Equal(names, []string{"y.txt"}) {
		t.Errorf("entries = %v", names)
	}
}
