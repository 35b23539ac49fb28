package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodbot/internal/photostore"
)

// fakeS3 keeps objects in memory keyed by bucket/key.
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	id := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[id] = data
	f.types[id] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	id := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	data, ok := f.objects[id]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String(f.types[id]),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	id := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if _, ok := f.objects[id]; !ok {
		return nil, &types.NotFound{}
	}
	delete(f.objects, id)
	return &s3.DeleteObjectOutput{}, nil
}

func newStore(client API) *S3PhotoStore {
	return NewS3PhotoStore(client, "bucket", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestS3PhotoStoreRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newStore(fake)
	ctx := context.Background()

	key, err := store.Save(ctx, "food-images/U1", "image/webp", strings.NewReader("webp bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "food-images/U1/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.Contains(t, fake.objects, "bucket/"+key)

	body, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "webp bytes", string(data))
	assert.Equal(t, "image/webp", mimeType)

	require.NoError(t, store.Delete(ctx, key))
	assert.Empty(t, fake.objects)
}

func TestS3PhotoStoreMIMEFromKey(t *testing.T) {
	fake := newFakeS3()
	fake.objects["bucket/a/b.png"] = []byte("x")
	store := newStore(fake)

	body, mimeType, err := store.Get(context.Background(), "a/b.png")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "image/png", mimeType)
}

func TestS3PhotoStoreNotFound(t *testing.T) {
	store := newStore(newFakeS3())
	ctx := context.Background()

	_, _, err := store.Get(ctx, "missing.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing.jpg"), photostore.ErrNotFound)
}

func TestS3PhotoStorePutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := newStore(fake)

	_, err := store.Save(context.Background(), "p", "image/jpeg", strings.NewReader("x"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
