package s3store

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/testutil"
)

func newTestStore(t *testing.T, client *testutil.MockS3Client) *Store {
	t.Helper()
	store, err := New(context.Background(), "test-bucket", WithClient(client))
	require.NoError(t, err)
	return store
}

func TestRangedRead(t *testing.T) {
	content := []byte("0123456789")
	var gotRange string

	client := &testutil.MockS3Client{
		GetObjectFunc: func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			gotRange = aws.ToString(params.Range)
			assert.Equal(t, "test-bucket", aws.ToString(params.Bucket))
			assert.Equal(t, "data/file.bin", aws.ToString(params.Key))
			return &s3.GetObjectOutput{
				Body: io.NopCloser(bytes.NewReader(content[2:7])),
			}, nil
		},
	}
	store := newTestStore(t, client)

	data, err := store.RangedRead(context.Background(), "data/file.bin", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456"), data)
	assert.Equal(t, "bytes=2-6", gotRange)
}

func TestRangedReadZeroLength(t *testing.T) {
	client := &testutil.MockS3Client{
		GetObjectFunc: func(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			t.Fatal("zero-length read must not call GetObject")
			return nil, nil
		},
	}
	store := newTestStore(t, client)

	data, err := store.RangedRead(context.Background(), "data/file.bin", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRangedReadNotFound(t *testing.T) {
	client := &testutil.MockS3Client{
		GetObjectFunc: func(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, stderrors.New("NoSuchKey: the specified key does not exist")
		},
	}
	store := newTestStore(t, client)

	_, err := store.RangedRead(context.Background(), "missing", 0, 10)
	require.Error(t, err)
	assert.True(t, errors.IsObjectNotFound(err))
}

func TestListPaginates(t *testing.T) {
	var calls int
	client := &testutil.MockS3Client{
		ListObjectsV2Func: func(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			assert.Equal(t, "data/", aws.ToString(params.Prefix))
			if params.ContinuationToken == nil {
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("data/a.csv"), Size: aws.Int64(10)},
						{Key: aws.String("data/dir/"), Size: aws.Int64(0)},
					},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("page2"),
				}, nil
			}
			assert.Equal(t, "page2", aws.ToString(params.ContinuationToken))
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("data/b.csv"), Size: aws.Int64(20)},
				},
			}, nil
		},
	}
	store := newTestStore(t, client)

	infos, err := store.List(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, infos, 2)
	assert.Equal(t, "data/a.csv", infos[0].Path)
	assert.Equal(t, int64(10), infos[0].Size)
	assert.Equal(t, "data/b.csv", infos[1].Path)
}

func TestInfo(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		client := &testutil.MockS3Client{
			HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				return &s3.HeadObjectOutput{ContentLength: aws.Int64(42)}, nil
			},
		}
		info, err := newTestStore(t, client).Info(context.Background(), "data/file.bin")
		require.NoError(t, err)
		assert.Equal(t, int64(42), info.Size)
		assert.False(t, info.Dir)
	})

	t.Run("prefix becomes directory", func(t *testing.T) {
		client := &testutil.MockS3Client{
			HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				return nil, stderrors.New("NotFound: no such object")
			},
			ListObjectsV2Func: func(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
				assert.Equal(t, "data/", aws.ToString(params.Prefix))
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{{Key: aws.String("data/a.csv")}},
				}, nil
			},
		}
		info, err := newTestStore(t, client).Info(context.Background(), "data")
		require.NoError(t, err)
		assert.True(t, info.Dir)
	})

	t.Run("missing", func(t *testing.T) {
		client := &testutil.MockS3Client{
			HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				return nil, stderrors.New("NotFound: no such object")
			},
		}
		_, err := newTestStore(t, client).Info(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.IsObjectNotFound(err))
	})
}

func TestMultipartUpload(t *testing.T) {
	const chunkSize = int64(5 * 1024 * 1024)

	var (
		mu       sync.Mutex
		partNums []int32
		created  int
		complete *s3.CompleteMultipartUploadInput
	)
	client := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			created++
			assert.Equal(t, "out/big.bin", aws.ToString(params.Key))
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			mu.Lock()
			partNums = append(partNums, aws.ToInt32(params.PartNumber))
			mu.Unlock()
			assert.Equal(t, "upload-1", aws.ToString(params.UploadId))
			return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			complete = params
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx, "out/big.bin", 3*chunkSize-1, chunkSize))
	assert.Equal(t, 1, created)

	// Chunks arrive out of order; part numbers come from offsets.
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", 2*chunkSize, make([]byte, chunkSize-1)))
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", 0, make([]byte, chunkSize)))
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", chunkSize, make([]byte, chunkSize)))
	assert.ElementsMatch(t, []int32{3, 1, 2}, partNums)

	require.NoError(t, store.Finalize(ctx, "out/big.bin"))
	require.NotNil(t, complete)
	nums := make([]int32, 0, 3)
	for _, p := range complete.MultipartUpload.Parts {
		nums = append(nums, aws.ToInt32(p.PartNumber))
	}
	assert.Equal(t, []int32{1, 2, 3}, nums)
}

func TestFinalizeRetryAfterCompleteFailure(t *testing.T) {
	const chunkSize = int64(5 * 1024 * 1024)

	var (
		created   int
		completes int
		aborts    int
		complete  *s3.CompleteMultipartUploadInput
	)
	client := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			created++
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			completes++
			if completes == 1 {
				return nil, stderrors.New("InternalError: please retry")
			}
			complete = params
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
		AbortMultipartUploadFunc: func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborts++
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx, "out/big.bin", 2*chunkSize, chunkSize))
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", 0, make([]byte, chunkSize)))
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", chunkSize, make([]byte, chunkSize)))

	// A failed complete must not abort the upload or drop its parts.
	require.Error(t, store.Finalize(ctx, "out/big.bin"))
	assert.Equal(t, 0, aborts)

	// A rerun re-prepares the same path and re-sends its last chunk; the
	// upload and part records carry over instead of starting fresh.
	require.NoError(t, store.Prepare(ctx, "out/big.bin", 2*chunkSize, chunkSize))
	assert.Equal(t, 1, created)
	require.NoError(t, store.RangedWrite(ctx, "out/big.bin", chunkSize, make([]byte, chunkSize)))

	require.NoError(t, store.Finalize(ctx, "out/big.bin"))
	require.NotNil(t, complete)
	nums := make([]int32, 0, 2)
	for _, p := range complete.MultipartUpload.Parts {
		nums = append(nums, aws.ToInt32(p.PartNumber))
	}
	assert.Equal(t, []int32{1, 2}, nums)
}

func TestMultipartRejectsMisalignedOffset(t *testing.T) {
	client := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx, "out/big.bin", 1<<21, 1<<20))
	err := store.RangedWrite(ctx, "out/big.bin", 123, make([]byte, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChunkMisaligned)
}

func TestSmallUploadBuffersUntilFinalize(t *testing.T) {
	var put *s3.PutObjectInput
	var putBody []byte
	client := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			t.Fatal("single-chunk upload must not start a multipart upload")
			return nil, nil
		},
		PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			put = params
			body, err := io.ReadAll(params.Body)
			require.NoError(t, err)
			putBody = body
			return &s3.PutObjectOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	content := []byte("hello, small object")
	require.NoError(t, store.Prepare(ctx, "out/small.txt", int64(len(content)), 1<<20))
	require.NoError(t, store.RangedWrite(ctx, "out/small.txt", 0, content))
	assert.Nil(t, put)

	require.NoError(t, store.Finalize(ctx, "out/small.txt"))
	require.NotNil(t, put)
	assert.Equal(t, content, putBody)
	assert.NotEmpty(t, aws.ToString(put.ContentType))
}

func TestEmptyObjectUpload(t *testing.T) {
	var put *s3.PutObjectInput
	client := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			put = params
			return &s3.PutObjectOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx, "out/empty", 0, 1<<20))
	require.NoError(t, store.RangedWrite(ctx, "out/empty", 0, nil))
	require.NoError(t, store.Finalize(ctx, "out/empty"))
	require.NotNil(t, put)
	assert.Equal(t, int64(0), aws.ToInt64(put.ContentLength))
}

func TestRangedWriteWithoutPrepare(t *testing.T) {
	var put bool
	client := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			put = true
			return &s3.PutObjectOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.RangedWrite(ctx, "out/adhoc", 0, []byte("data")))
	assert.True(t, put)

	err := store.RangedWrite(ctx, "out/adhoc", 10, []byte("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestAbandonPending(t *testing.T) {
	var aborted []string
	client := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("id-" + aws.ToString(params.Key))}, nil
		},
		AbortMultipartUploadFunc: func(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborted = append(aborted, aws.ToString(params.Key))
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx, "out/a", 1<<22, 1<<20))
	require.NoError(t, store.Prepare(ctx, "out/b", 1<<22, 1<<20))
	require.NoError(t, store.AbandonPending(ctx))
	assert.ElementsMatch(t, []string{"out/a", "out/b"}, aborted)

	// Pending map is cleared; a second call aborts nothing.
	aborted = nil
	require.NoError(t, store.AbandonPending(ctx))
	assert.Empty(t, aborted)
}

func TestExists(t *testing.T) {
	client := &testutil.MockS3Client{
		HeadObjectFunc: func(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			if aws.ToString(params.Key) == "present" {
				return &s3.HeadObjectOutput{}, nil
			}
			return nil, stderrors.New("NotFound")
		},
	}
	store := newTestStore(t, client)

	ok, err := store.Exists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}
