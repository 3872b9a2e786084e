package snapshot

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	listed  int
}

type fakeObject struct {
	body []byte
	meta map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = fakeObject{body: body, meta: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.meta,
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++

	prefix := *in.Bucket + "/" + *in.Prefix
	var keys []string
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(*in.Bucket)+1:])
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for i := range keys {
		out.Contents = append(out.Contents, types.Object{Key: &keys[i]})
	}
	return out, nil
}

// storeFactories builds every backend against throwaway resources.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore(WithCleanupInterval(24 * time.Hour)) },
		"file":   func() Store { return NewFileStore(t.TempDir()) },
		"s3":     func() Store { return NewS3Store(newFakeS3(), "bucket", "fluxreg/") },
	}
}

func TestStores_SaveLoadDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })
			ctx := context.Background()

			if err := store.Save(ctx, "a", []byte(`{"x":1}`), time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
			got, err := store.Load(ctx, "a")
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if string(got) != `{"x":1}` {
				t.Errorf("Load() = %q", got)
			}

			if err := store.Save(ctx, "a", []byte("second"), time.Time{}); err != nil {
				t.Fatal(err)
			}
			if got, _ := store.Load(ctx, "a"); string(got) != "second" {
				t.Errorf("overwrite: Load() = %q", got)
			}

			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if got, err := store.Load(ctx, "a"); got != nil || err != nil {
				t.Errorf("after delete: Load() = %q, %v", got, err)
			}
			if err := store.Delete(ctx, "a"); err != nil {
				t.Errorf("Delete() of missing key error: %v", err)
			}
		})
	}
}

func TestStores_MissingKey(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })

			got, err := store.Load(context.Background(), "nope")
			if got != nil || err != nil {
				t.Errorf("Load() = %q, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestStores_ExpiredLoadsAsMissing(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })
			ctx := context.Background()

			if err := store.Save(ctx, "old", []byte("x"), time.Now().Add(-time.Second)); err != nil {
				t.Fatal(err)
			}
			got, err := store.Load(ctx, "old")
			if got != nil || err != nil {
				t.Errorf("Load() = %q, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestStores_Keys(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })
			ctx := context.Background()

			for _, key := range []string{"beta", "alpha", "gamma"} {
				if err := store.Save(ctx, key, []byte(key), time.Time{}); err != nil {
					t.Fatal(err)
				}
			}
			keys, err := store.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error: %v", err)
			}
			if want := []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(keys, want) {
				t.Errorf("Keys() = %v, want %v", keys, want)
			}
		})
	}
}

func TestStores_InvalidKey(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })

			for _, key := range []string{"", "..", "a/b", `a\b`} {
				if err := store.Save(context.Background(), key, []byte("x"), time.Time{}); err != ErrInvalidKey {
					t.Errorf("Save(%q) error = %v, want ErrInvalidKey", key, err)
				}
			}
		})
	}
}

func TestStores_Closed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("second Close() error: %v", err)
			}

			ctx := context.Background()
			if err := store.Save(ctx, "k", nil, time.Time{}); err != (ErrStoreClosed{}) {
				t.Errorf("Save() error = %v, want ErrStoreClosed", err)
			}
			if _, err := store.Load(ctx, "k"); err != (ErrStoreClosed{}) {
				t.Errorf("Load() error = %v, want ErrStoreClosed", err)
			}
			if _, err := store.Keys(ctx); err != (ErrStoreClosed{}) {
				t.Errorf("Keys() error = %v, want ErrStoreClosed", err)
			}
		})
	}
}

func TestMemoryStore_CopyOnSaveAndLoad(t *testing.T) {
	store := NewMemoryStore(WithCleanupInterval(24 * time.Hour))
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	original := []byte("abc")
	if err := store.Save(ctx, "s1", original, time.Time{}); err != nil {
		t.Fatal(err)
	}
	original[0] = 'z'

	loaded, _ := store.Load(ctx, "s1")
	if string(loaded) != "abc" {
		t.Fatalf("Load() returned mutated data: %q", loaded)
	}
	loaded[1] = 'y'
	if again, _ := store.Load(ctx, "s1"); string(again) != "abc" {
		t.Fatalf("Load() returned mutated data after caller mutation: %q", again)
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore(WithCleanupInterval(24 * time.Hour))
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	_ = store.Save(ctx, "old", []byte("x"), time.Now().Add(-time.Minute))
	_ = store.Save(ctx, "new", []byte("y"), time.Now().Add(time.Hour))
	_ = store.Save(ctx, "forever", []byte("z"), time.Time{})

	store.cleanup()
	if got := store.Count(); got != 2 {
		t.Errorf("Count() after cleanup = %d, want 2", got)
	}
}

func TestMemoryStore_NonPositiveCleanupInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		store := NewMemoryStore(WithCleanupInterval(d))
		if err := store.Save(context.Background(), "k", []byte("v"), time.Time{}); err != nil {
			t.Errorf("Save() with interval %v error: %v", d, err)
		}
		_ = store.Close()
	}
}

func TestS3Store_KeysStripsPrefix(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "bucket", "team/")
	ctx := context.Background()

	_ = store.Save(ctx, "one", []byte("1"), time.Time{})
	other := NewS3Store(client, "bucket", "other/")
	_ = other.Save(ctx, "two", []byte("2"), time.Time{})

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"one"}) {
		t.Errorf("Keys() = %v, want [one]", keys)
	}
	if client.listed != 1 {
		t.Errorf("ListObjectsV2 called %d times, want 1", client.listed)
	}
}

func TestS3Store_ExpiryMetadata(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "bucket", "")
	expiresAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := store.Save(context.Background(), "k", []byte("x"), expiresAt); err != nil {
		t.Fatal(err)
	}
	meta := client.objects["bucket/k"].meta
	if meta[metaExpiresAt] != "2030-01-02T03:04:05Z" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(S3ClientOptions{
		Region:      "eu-west-1",
		Endpoint:    "http://localhost:9000",
		AccessKeyID: "key",
	})
	opts := client.Options()
	if opts.Region != "eu-west-1" {
		t.Errorf("Region = %q", opts.Region)
	}
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:9000" || !opts.UsePathStyle {
		t.Errorf("endpoint not applied: %+v", opts)
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "key" {
		t.Errorf("Credentials = %+v, %v", creds, err)
	}
}

func TestStores_EmptyDataIsFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			t.Cleanup(func() { _ = store.Close() })
			ctx := context.Background()

			if err := store.Save(ctx, "empty", nil, time.Time{}); err != nil {
				t.Fatal(err)
			}
			got, err := store.Load(ctx, "empty")
			if err != nil || got == nil || len(got) != 0 {
				t.Errorf("Load() = %#v, %v; want empty non-nil", got, err)
			}
		})
	}
}
