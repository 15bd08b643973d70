package filesaga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/objstore"
	"github.com/hupe1980/filesaga/permdb"
	"github.com/hupe1980/filesaga/permdb/permdbtest"
	"github.com/hupe1980/filesaga/userpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ddb     *permdbtest.FakeClient
	objects *objstore.MemoryStore
	metrics *BasicMetricsCollector
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ddb := permdbtest.NewFakeClient()
	objects := objstore.NewMemoryStore()
	metrics := &BasicMetricsCollector{}

	svc, err := New(objects, permdb.New(ddb, "permissions"), WithMetricsCollector(metrics))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{ddb: ddb, objects: objects, metrics: metrics, svc: svc}
}

func mustPath(t *testing.T, raw string) userpath.Path {
	t.Helper()
	p, err := userpath.FromAbsolute(raw)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(nil, permdb.New(permdbtest.NewFakeClient(), "t"))
	assert.ErrorIs(t, err, ErrMissingStore)

	_, err = New(objstore.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, ErrMissingStore)
}

func TestCreateFile_Success(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/docs/../notes.txt")

	got, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.NoError(t, err)
	assert.Equal(t, "alice/notes.txt", got)

	assert.True(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.True(t, f.objects.Has("alice/notes.txt"))

	stats := f.metrics.GetStats()
	assert.Equal(t, int64(1), stats.CreateCount)
	assert.Equal(t, int64(0), stats.CreateErrors)
	assert.Equal(t, int64(0), stats.CompensationCount)
}

func TestCreateFile_AlreadyExists(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.ddb.SeedMaster("alice", "alice/notes.txt", "bob")
	f.objects.Seed("alice/notes.txt")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindConflict))
	assert.False(t, fault.IsTransient(err))

	// Nothing deleted or recreated
	assert.True(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.True(t, f.ddb.Has("bob", "alice/notes.txt"))
	assert.Equal(t, 0, f.objects.Creates())
	assert.Equal(t, 0, f.ddb.Calls("DeleteItem"))
	assert.Equal(t, 0, f.ddb.Calls("BatchWriteItem"))
}

func TestCreateFile_EntryOwnedByOtherCreator(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.ddb.SeedMaster("alice", "alice/notes.txt")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindConflict))

	assert.True(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.False(t, f.objects.Has("alice/notes.txt"))
	assert.Equal(t, 0, f.objects.Creates())
	assert.Equal(t, 0, f.ddb.Calls("DeleteItem"))
}

func TestCreateFile_ObjectWithoutEntry(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.objects.Seed("alice/notes.txt")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.True(t, fault.IsTransient(err))
	assert.Equal(t, "Server error: "+msgRetryLater, err.Error())

	// Entry compensated, object untouched
	assert.False(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.Equal(t, 0, f.ddb.Len())
	assert.True(t, f.objects.Has("alice/notes.txt"))
	assert.Equal(t, 0, f.objects.Creates())

	stats := f.metrics.GetStats()
	assert.Equal(t, int64(1), stats.CompensationCount)
	assert.Equal(t, int64(0), stats.CompensationErrors)
}

func TestCreateFile_ObjectWithoutEntry_CompensationFails(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.objects.Seed("alice/notes.txt")
	f.ddb.GetItemErr = errors.New("throttled")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.False(t, fault.IsTransient(err))
	assert.Equal(t, "Server error: "+msgCreateFailed, err.Error())
	assert.Equal(t, int64(1), f.metrics.GetStats().CompensationErrors)
}

func TestCreateFile_ObjectCreateFails(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	storeErr := errors.New("connection reset")
	f.objects.CreateErr = storeErr

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.False(t, fault.IsTransient(err))
	assert.ErrorIs(t, err, storeErr)

	// No master entry remains
	assert.False(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.Equal(t, 0, f.ddb.Len())
}

func TestCreateFile_ObjectCreateFails_CompensationFails(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	storeErr := errors.New("connection reset")
	dbErr := errors.New("throttled")
	f.objects.CreateErr = storeErr
	f.ddb.GetItemErr = dbErr

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.ErrorIs(t, err, storeErr)
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, f.ddb.Has("alice", "alice/notes.txt"))
}

// deadlineStore creates objects only once ctx is done, like a request that
// runs into its deadline.
type deadlineStore struct {
	*objstore.MemoryStore
}

func (d deadlineStore) Create(ctx context.Context, _ userpath.Path) error {
	<-ctx.Done()
	return ctx.Err()
}

// ctxClient fails every call on a done context, as the AWS SDK does.
type ctxClient struct {
	*permdbtest.FakeClient
}

func (c ctxClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.FakeClient.PutItem(ctx, in, optFns...)
}

func (c ctxClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.FakeClient.GetItem(ctx, in, optFns...)
}

func (c ctxClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.FakeClient.DeleteItem(ctx, in, optFns...)
}

func (c ctxClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.FakeClient.BatchWriteItem(ctx, in, optFns...)
}

func TestCreateFile_DeadlineExceeded_EntryCompensated(t *testing.T) {
	ddb := permdbtest.NewFakeClient()
	objects := objstore.NewMemoryStore()
	metrics := &BasicMetricsCollector{}

	svc, err := New(deadlineStore{objects}, permdb.New(ctxClient{ddb}, "permissions"),
		WithMetricsCollector(metrics),
		WithCompensationTimeout(time.Second),
	)
	require.NoError(t, err)
	defer svc.Close()

	p := mustPath(t, "/alice/notes.txt")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.CreateFile(ctx, "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The rollback ran past the request deadline
	assert.False(t, ddb.Has("alice", "alice/notes.txt"))
	assert.Equal(t, int64(1), metrics.GetStats().CompensationCount)
	assert.Equal(t, int64(0), metrics.GetStats().CompensationErrors)

	// A retry is not locked out by a leftover entry
	retry, err := New(objects, permdb.New(ctxClient{ddb}, "permissions"))
	require.NoError(t, err)
	defer retry.Close()

	_, err = retry.CreateFile(context.Background(), "alice", p)
	require.NoError(t, err)
	assert.True(t, objects.Has("alice/notes.txt"))
}

func TestCreateFile_PresenceCheckFails(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.objects.CheckErr = errors.New("access denied")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))

	// The fresh entry is compensated, nothing is created
	assert.Equal(t, 0, f.ddb.Len())
	assert.Equal(t, 0, f.objects.Creates())
	assert.Equal(t, int64(1), f.metrics.GetStats().CompensationCount)
}

func TestCreateFile_PresenceCheckFails_EntryExisted(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/notes.txt")
	f.ddb.SeedMaster("alice", "alice/notes.txt")
	f.objects.CheckErr = errors.New("access denied")

	_, err := f.svc.CreateFile(context.Background(), "alice", p)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.True(t, f.ddb.Has("alice", "alice/notes.txt"))
	assert.Equal(t, 0, f.ddb.Calls("DeleteItem"))
}

func TestCreateFile_EntryCreateFails(t *testing.T) {
	t.Run("ObjectAbsent", func(t *testing.T) {
		f := newFixture(t)
		f.ddb.PutItemErr = errors.New("internal failure")

		_, err := f.svc.CreateFile(context.Background(), "alice", mustPath(t, "/alice/notes.txt"))
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindDB))
		assert.False(t, fault.IsTransient(err))
		assert.Equal(t, 0, f.objects.Creates())
	})

	t.Run("ObjectPresent", func(t *testing.T) {
		f := newFixture(t)
		f.ddb.PutItemErr = errors.New("internal failure")
		f.objects.Seed("alice/notes.txt")

		_, err := f.svc.CreateFile(context.Background(), "alice", mustPath(t, "/alice/notes.txt"))
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindServer))
		assert.True(t, fault.IsTransient(err))
		assert.Equal(t, 0, f.ddb.Calls("DeleteItem"))
	})
}

func TestCreateFile_ConcurrentCreators(t *testing.T) {
	f := newFixture(t)
	p := mustPath(t, "/alice/race.txt")

	const n = 16
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CreateFile(context.Background(), "alice", p)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, fault.Is(err, fault.KindConflict), "got %v", err)
	}

	assert.Equal(t, 1, successes)
	assert.True(t, f.ddb.Has("alice", "alice/race.txt"))
	assert.True(t, f.objects.Has("alice/race.txt"))
}

func TestCreateFile_Preconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateFile(context.Background(), "alice", userpath.Path{})
	assert.True(t, fault.Is(err, fault.KindArgument))

	_, err = f.svc.CreateFile(context.Background(), "bob", mustPath(t, "/alice/x"))
	assert.True(t, fault.Is(err, fault.KindForbidden))
	assert.Equal(t, 0, f.ddb.Calls("PutItem"))
}

func TestHandle(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)

		resp, err := f.svc.Handle(context.Background(), Request{UserID: "alice", FilePath: "/alice//a/./b.txt"})
		require.NoError(t, err)
		assert.Equal(t, Response{FilePath: "/alice/a/b.txt"}, resp)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		f := newFixture(t)

		for _, raw := range []string{"", "alice/a.txt", "/alice", "/"} {
			_, err := f.svc.Handle(context.Background(), Request{UserID: "alice", FilePath: raw})
			assert.True(t, fault.Is(err, fault.KindArgument), "path %q: %v", raw, err)
		}
		assert.Equal(t, 0, f.ddb.Calls("PutItem"))
	})

	t.Run("Forbidden", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Handle(context.Background(), Request{UserID: "mallory", FilePath: "/alice/a.txt"})
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindForbidden))
		assert.Equal(t, 0, f.ddb.Calls("PutItem"))
		assert.Equal(t, 0, f.objects.Creates())
	})

	t.Run("DBFaultFolded", func(t *testing.T) {
		f := newFixture(t)
		f.ddb.PutItemErr = errors.New("internal failure")

		_, err := f.svc.Handle(context.Background(), Request{UserID: "alice", FilePath: "/alice/a.txt"})
		require.Error(t, err)
		assert.Equal(t, fault.KindServer, fault.KindOf(err))
		assert.Equal(t, "Server error: creating file failed", err.Error())
	})
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name      string
		in        error
		kind      fault.Kind
		transient bool
		msg       string
	}{
		{"argument", fault.Argument("bad path"), fault.KindArgument, false, "Argument error: bad path"},
		{"conflict", fault.Conflict(msgConflict), fault.KindConflict, false, "Conflict: file already exists"},
		{"transient", fault.TransientServer(msgRetryLater, nil), fault.KindServer, true, "Server error: " + msgRetryLater},
		{"db", fault.DB("corrupted file metadata", nil), fault.KindServer, false, "Server error: corrupted file metadata"},
		{"entry exists", fault.EntryAlreadyExists(""), fault.KindServer, false, "Server error: " + msgInternal},
		{"foreign", errors.New("dial tcp: i/o timeout"), fault.KindServer, false, "Server error: " + msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.in)
			assert.Equal(t, tt.kind, fault.KindOf(err))
			assert.Equal(t, tt.transient, fault.IsTransient(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	assert.NoError(t, translateError(nil))
}

// blockingStore parks Create until release is closed.
type blockingStore struct {
	*objstore.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Create(ctx context.Context, p userpath.Path) error {
	close(b.entered)
	<-b.release
	return b.MemoryStore.Create(ctx, p)
}

func TestClose(t *testing.T) {
	objects := &blockingStore{
		MemoryStore: objstore.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc, err := New(objects, permdb.New(permdbtest.NewFakeClient(), "permissions"))
	require.NoError(t, err)

	slow := mustPath(t, "/alice/slow.txt")
	created := make(chan error, 1)
	go func() {
		_, err := svc.CreateFile(context.Background(), "alice", slow)
		created <- err
	}()
	<-objects.entered

	closed := make(chan struct{})
	go func() {
		_ = svc.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a call was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(objects.release)
	require.NoError(t, <-created)
	<-closed

	_, err = svc.CreateFile(context.Background(), "alice", mustPath(t, "/alice/late.txt"))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindServer))
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, svc.Close())
}
