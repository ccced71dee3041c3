package awss3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	smithy "github.com/aws/smithy-go"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dirt/objectstore"
)

func TestStore(t *testing.T) {
	var (
		newCtx = func() context.Context {
			return context.Background()
		}
		newSut = func(t *testing.T) *Store {
			var cfg = setupFakeS3(t)
			store, err := New(newCtx(), cfg)
			require.NoError(t, err)
			return store
		}
	)

	t.Run("should round-trip an object with metadata", func(t *testing.T) {
		// Arrange
		var (
			sut     = newSut(t)
			ctx     = newCtx()
			payload = "holder-marker"
		)

		// Act
		_, err := sut.PutIfAbsent(ctx, "dirt.lock", strings.NewReader(payload), int64(len(payload)), map[string]string{"created-at": "1700000000"})
		require.NoError(t, err)
		info, headErr := sut.Head(ctx, "dirt.lock")
		rc, _, getErr := sut.Get(ctx, "dirt.lock")

		// Assert
		require.NoError(t, headErr)
		require.NoError(t, getErr)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, string(data))
		assert.Equal(t, "1700000000", info.Metadata["created-at"])
	})

	t.Run("should report missing objects", func(t *testing.T) {
		// Arrange
		var (
			sut = newSut(t)
			ctx = newCtx()
		)

		// Act
		_, headErr := sut.Head(ctx, "missing")
		_, _, getErr := sut.Get(ctx, "missing")

		// Assert
		assert.ErrorIs(t, headErr, objectstore.ErrNotFound)
		assert.ErrorIs(t, getErr, objectstore.ErrNotFound)
	})

	t.Run("should copy server side and delete idempotently", func(t *testing.T) {
		// Arrange
		var (
			sut = newSut(t)
			ctx = newCtx()
		)
		_, err := sut.Put(ctx, "dirt.db", strings.NewReader("bytes"), 5)
		require.NoError(t, err)

		// Act
		_, copyErr := sut.Copy(ctx, "dirt.db", "dirt.db.7")
		require.NoError(t, copyErr)
		require.NoError(t, sut.Delete(ctx, "dirt.db"))
		require.NoError(t, sut.Delete(ctx, "dirt.db"))

		// Assert
		_, headErr := sut.Head(ctx, "dirt.db")
		assert.ErrorIs(t, headErr, objectstore.ErrNotFound)
		info, err := sut.Head(ctx, "dirt.db.7")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
	})

	t.Run("should copy keys with nested segments", func(t *testing.T) {
		// Arrange
		var (
			sut = newSut(t)
			ctx = newCtx()
		)
		_, err := sut.Put(ctx, "team a/dirt.db", strings.NewReader("bytes"), 5)
		require.NoError(t, err)

		// Act
		_, copyErr := sut.Copy(ctx, "team a/dirt.db", "team a/dirt.db.300")

		// Assert
		require.NoError(t, copyErr)
		info, err := sut.Head(ctx, "team a/dirt.db.300")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
	})

	t.Run("should report a missing copy source", func(t *testing.T) {
		// Arrange
		var sut = newSut(t)

		// Act
		_, err := sut.Copy(newCtx(), "dirt.db", "dirt.db.7")

		// Assert
		assert.ErrorIs(t, err, objectstore.ErrNotFound)
	})

	t.Run("should delete only the object with the expected etag", func(t *testing.T) {
		// Arrange
		var (
			sut = newSut(t)
			ctx = newCtx()
		)
		first, err := sut.PutIfAbsent(ctx, "dirt.lock", strings.NewReader("first"), 5, nil)
		require.NoError(t, err)
		require.NoError(t, sut.Delete(ctx, "dirt.lock"))
		second, err := sut.PutIfAbsent(ctx, "dirt.lock", strings.NewReader("second"), 6, nil)
		require.NoError(t, err)

		// Act
		var staleErr = sut.DeleteIfMatch(ctx, "dirt.lock", first.ETag)
		var currentErr = sut.DeleteIfMatch(ctx, "dirt.lock", second.ETag)
		var goneErr = sut.DeleteIfMatch(ctx, "dirt.lock", second.ETag)

		// Assert
		assert.ErrorIs(t, staleErr, objectstore.ErrPreconditionFailed)
		assert.NoError(t, currentErr)
		assert.ErrorIs(t, goneErr, objectstore.ErrNotFound)
	})

	t.Run("should not treat a missing bucket as a missing key", func(t *testing.T) {
		// Arrange
		var cfg = setupFakeS3(t)
		cfg.Bucket = "no-such-bucket"
		sut, err := New(newCtx(), cfg)
		require.NoError(t, err)

		// Act
		var deleteErr = sut.Delete(newCtx(), "dirt.lock")

		// Assert
		assert.Error(t, deleteErr)
	})

	t.Run("should require bucket and region", func(t *testing.T) {
		// Act
		_, noBucket := New(newCtx(), Config{Region: "eu-west-1"})
		_, noRegion := New(newCtx(), Config{Bucket: "b"})

		// Assert
		assert.Error(t, noBucket)
		assert.Error(t, noRegion)
	})
}

func TestErrorClassification(t *testing.T) {
	var tests = []struct {
		name         string
		err          error
		notFound     bool
		precondition bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "no such key", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, notFound: true},
		{name: "head not found", err: fmt.Errorf("op: %w", &smithy.GenericAPIError{Code: "NotFound"}), notFound: true},
		{name: "precondition", err: &smithy.GenericAPIError{Code: "PreconditionFailed"}, precondition: true},
		{name: "conditional conflict", err: &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}, precondition: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "no such bucket", err: &smithy.GenericAPIError{Code: "NoSuchBucket"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.notFound, isNotFound(tc.err))
			assert.Equal(t, tc.precondition, isPreconditionFailed(tc.err))
		})
	}
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "dirt-test/dirt.db", copySource("dirt-test", "dirt.db"))
	assert.Equal(t, "dirt-test/team%20a/dirt.db.41", copySource("dirt-test", "team a/dirt.db.41"))
}

func setupFakeS3(t *testing.T) Config {
	t.Helper()
	var (
		backend = s3mem.New()
		faker   = gofakes3.New(backend)
		server  = httptest.NewServer(faker.Server())
		bucket  = "dirt-test"
	)
	t.Cleanup(server.Close)
	if err := backend.CreateBucket(bucket); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	return Config{
		Region:         "us-east-1",
		Bucket:         bucket,
		Endpoint:       server.URL,
		AccessKey:      "test",
		SecretKey:      "test",
		Insecure:       true,
		ForcePathStyle: true,
	}
}
