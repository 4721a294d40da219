package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a.wav", "a.wav", true},
		{"sub/dir/a.wav", "sub/dir/a.wav", true},
		{"./a.wav", "a.wav", true},
		{"sub/../a.wav", "a.wav", true},
		{"", "", false},
		{"/etc/passwd", "", false},
		{"../a.wav", "", false},
		{"sub/../../a.wav", "", false},
		{"..", "", false},
		{".", "", false},
		{`a\b.wav`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanName(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirReadWrite(t *testing.T) {
	ctx := context.Background()
	d := NewDir(t.TempDir())

	require.NoError(t, d.WriteBytes(ctx, "nested/deeper/a.wav", []byte("first")))
	got, err := d.ReadBytes(ctx, "nested/deeper/a.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	// Overwrites, including with shorter content.
	require.NoError(t, d.WriteBytes(ctx, "nested/deeper/a.wav", []byte("2")))
	got, err = d.ReadBytes(ctx, "nested/deeper/a.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestDirNotFound(t *testing.T) {
	ctx := context.Background()
	d := NewDir(t.TempDir())

	_, err := d.ReadBytes(ctx, "missing.wav")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, d.Delete(ctx, "missing.wav"), ErrNotFound)
}

func TestDirRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	d := NewDir(t.TempDir())

	assert.ErrorIs(t, d.WriteBytes(ctx, "../x.wav", nil), ErrInvalidPath)
	_, err := d.ReadBytes(ctx, "/x.wav")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDirWriteFailure(t *testing.T) {
	root := t.TempDir()
	// A regular file where a directory is needed.
	require.NoError(t, os.WriteFile(filepath.Join(root, "blocker"), []byte("x"), 0o644))

	err := NewDir(root).WriteBytes(context.Background(), "blocker/a.wav", []byte("data"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDirListAndDelete(t *testing.T) {
	ctx := context.Background()
	d := NewDir(t.TempDir())

	require.NoError(t, d.WriteBytes(ctx, "b.wav", []byte("bb")))
	require.NoError(t, d.WriteBytes(ctx, "a.wav", []byte("a")))
	require.NoError(t, d.WriteBytes(ctx, "sub/c.wav", []byte("ccc")))

	objs, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, "a.wav", objs[0].Name)
	assert.Equal(t, int64(1), objs[0].Size)
	assert.Equal(t, "b.wav", objs[1].Name)
	assert.Equal(t, "sub/c.wav", objs[2].Name)
	assert.Equal(t, int64(3), objs[2].Size)
	assert.False(t, objs[2].ModTime.IsZero())

	require.NoError(t, d.Delete(ctx, "b.wav"))
	objs, err = d.List(ctx)
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestDirListMissingRoot(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "not-yet"))
	objs, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestDirHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDir(t.TempDir())
	assert.ErrorIs(t, d.WriteBytes(ctx, "a.wav", nil), context.Canceled)
}

// fakeS3 is an in-memory bucket that pages listings two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	lastPut *s3.PutObjectInput
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(b)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for start < len(keys) && keys[start] <= tok {
			start++
		}
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{}
	mod := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(mod),
		})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func TestS3ReadWrite(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3WithClient(fake, "bucket", "memos")

	require.NoError(t, s.WriteBytes(ctx, "a.wav", []byte("RIFF")))
	assert.Contains(t, fake.objects, "memos/a.wav")
	assert.Equal(t, "audio/wav", aws.ToString(fake.lastPut.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.lastPut.ContentLength))

	got, err := s.ReadBytes(ctx, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), got)

	_, err = s.ReadBytes(ctx, "missing.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3WriteErrorIsWrapped(t *testing.T) {
	fake := newFakeS3()
	boom := errors.New("access denied")
	fake.putErr = boom

	err := NewS3WithClient(fake, "bucket", "").WriteBytes(context.Background(), "a.wav", nil)
	assert.ErrorIs(t, err, boom)
}

func TestS3ListPagesAndStripsPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["other/x.wav"] = []byte("x")
	s := NewS3WithClient(fake, "bucket", "memos/")

	for _, n := range []string{"e.wav", "a.wav", "c.wav", "d.wav", "b.wav"} {
		require.NoError(t, s.WriteBytes(ctx, n, []byte(n)))
	}

	objs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 5)
	for i, want := range []string{"a.wav", "b.wav", "c.wav", "d.wav", "e.wav"} {
		assert.Equal(t, want, objs[i].Name)
		assert.Equal(t, int64(5), objs[i].Size)
	}
}

func TestS3Delete(t *testing.T) {
	ctx := context.Background()
	s := NewS3WithClient(newFakeS3(), "bucket", "")

	require.NoError(t, s.WriteBytes(ctx, "a.wav", []byte("a")))
	require.NoError(t, s.Delete(ctx, "a.wav"))
	assert.ErrorIs(t, s.Delete(ctx, "a.wav"), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "../a.wav"), ErrInvalidPath)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.Error(t, err)
}
