package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	blobstore "github.com/angelmondragon/mediagateway/pkg/storage"
)

func newGateway(t *testing.T, opts Options) (*Gateway, *blobstore.MemoryStore) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	return NewGateway(store, opts, nil), store
}

func readAll(t *testing.T, obj *Object) string {
	t.Helper()
	require.NotNil(t, obj.Body)
	defer obj.Body.Close()
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGatewayRangeRead(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	ctx := context.Background()

	url, err := gw.Put(ctx, "t.txt", strings.NewReader("helloworld"), 10, "")
	require.NoError(t, err)
	assert.Equal(t, "/file/t.txt", url)

	obj, err := gw.Get(ctx, "t.txt", "bytes=2-5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, obj.Status)
	assert.Equal(t, "bytes 2-5/10", obj.Header.Get("Content-Range"))
	assert.Equal(t, "4", obj.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", obj.Header.Get("Accept-Ranges"))
	assert.Equal(t, "llow", readAll(t, obj))

	obj, err = gw.Get(ctx, "t.txt", "bytes=5-")
	require.NoError(t, err)
	assert.Equal(t, "bytes 5-9/10", obj.Header.Get("Content-Range"))
	assert.Equal(t, "world", readAll(t, obj))
}

func TestGatewayFullRead(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	ctx := context.Background()
	_, err := gw.Put(ctx, "t.txt", strings.NewReader("helloworld"), 10, "")
	require.NoError(t, err)

	obj, err := gw.Get(ctx, "t.txt", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, obj.Status)
	assert.Equal(t, "10", obj.Header.Get("Content-Length"))
	assert.Empty(t, obj.Header.Get("Content-Range"))
	assert.True(t, strings.HasPrefix(obj.Header.Get("Content-Type"), "text/plain"))
	assert.NotEmpty(t, obj.Header.Get("ETag"))
	assert.Equal(t, "helloworld", readAll(t, obj))
}

func TestGatewayHeadHasNoBody(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	ctx := context.Background()
	_, err := gw.Put(ctx, "a.mp3", strings.NewReader("0123456789"), 10, "audio/mpeg")
	require.NoError(t, err)

	obj, err := gw.Head(ctx, "a.mp3", "bytes=0-1")
	require.NoError(t, err)
	assert.Nil(t, obj.Body)
	assert.Equal(t, http.StatusPartialContent, obj.Status)
	assert.Equal(t, "audio/mpeg", obj.Header.Get("Content-Type"))
}

func TestGatewayRangeErrors(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	ctx := context.Background()
	_, err := gw.Put(ctx, "t.txt", strings.NewReader("helloworld"), 10, "text/plain")
	require.NoError(t, err)

	obj, err := gw.Get(ctx, "t.txt", "bytes=20-30")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRangeUnsatisfied))
	require.NotNil(t, obj)
	assert.Equal(t, "bytes */10", obj.Header.Get("Content-Range"))
	assert.Nil(t, obj.Body)

	_, err = gw.Get(ctx, "t.txt", "bytes=oops")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGatewayMissingObject(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	_, err := gw.Get(context.Background(), "nope.mp3", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGatewayDeleteIsIdempotent(t *testing.T) {
	gw, store := newGateway(t, Options{})
	ctx := context.Background()
	_, err := gw.Put(ctx, "k", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)

	require.NoError(t, gw.Delete(ctx, "k"))
	require.NoError(t, gw.Delete(ctx, "k"))
	_, err = store.Stat(ctx, "k")
	assert.ErrorIs(t, err, blobstore.ErrObjectNotFound)

	err = gw.Delete(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGatewayListNewestFirst(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := blobstore.NewMemoryStore().WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	gw := NewGateway(store, Options{PublicBaseURL: "https://cdn.example.com/media/"}, nil)
	ctx := context.Background()

	for _, key := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		_, err := gw.Put(ctx, key, strings.NewReader("abc"), 3, "audio/mpeg")
		require.NoError(t, err)
	}

	files, err := gw.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "c.mp3", files[0].Key)
	assert.Equal(t, "a.mp3", files[2].Key)
	assert.Equal(t, "https://cdn.example.com/media/c.mp3", files[0].URL)
	assert.Equal(t, int64(3), files[0].Size)
}

func TestGatewayPublicURL(t *testing.T) {
	gw := NewGateway(nil, Options{PublicBaseURL: "https://cdn.example.com"}, nil)
	assert.Equal(t, "https://cdn.example.com/mixes/one.mp3", gw.PublicURL("mixes/one.mp3"))

	gw = NewGateway(nil, Options{}, nil)
	assert.Equal(t, "/file/mixes/one%20two.mp3", gw.PublicURL("mixes/one two.mp3"))
}

func TestGatewayWithoutStore(t *testing.T) {
	gw := NewGateway(nil, Options{}, nil)
	ctx := context.Background()

	_, err := gw.Put(ctx, "k", strings.NewReader("x"), 1, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	_, err = gw.Get(ctx, "k", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	_, err = gw.List(ctx, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	assert.True(t, pkgerrors.IsCode(gw.Delete(ctx, "k"), pkgerrors.CodeConfiguration))
	assert.False(t, gw.Configured())
}

func TestGatewayUploadTooLarge(t *testing.T) {
	gw, _ := newGateway(t, Options{})
	body := http.MaxBytesReader(nil, io.NopCloser(strings.NewReader("0123456789")), 4)

	_, err := gw.Put(context.Background(), "big.bin", body, -1, "application/octet-stream")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type failingStore struct {
	blobstore.Store
}

func (failingStore) Stat(context.Context, string) (blobstore.ObjectInfo, error) {
	return blobstore.ObjectInfo{}, errors.New("connection reset")
}

func TestGatewayDependencyFailure(t *testing.T) {
	gw := NewGateway(failingStore{}, Options{}, nil)
	_, err := gw.Get(context.Background(), "k", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNormalizeKey(t *testing.T) {
	key, err := NormalizeKey("/mixes/a.mp3/")
	require.NoError(t, err)
	assert.Equal(t, "mixes/a.mp3", key)

	for _, bad := range []string{"", "  ", "../etc/passwd", "a//b", "a/./b"} {
		_, err := NormalizeKey(bad)
		assert.Errorf(t, err, "expected %q to be rejected", bad)
	}
}
