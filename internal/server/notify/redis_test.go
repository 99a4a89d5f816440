package notify

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps lists and sorted sets in memory and answers with the
// result constructors go-redis provides for mocking.
type fakeRedis struct {
	mu    sync.Mutex
	lists map[string][]string
	zsets map[string]map[string]float64
	err   error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}, zsets: map[string]map[string]float64{}}
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) BLMove(_ context.Context, source, destination, srcpos, destpos string, _ time.Duration) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	// Only the RIGHT -> LEFT move RedisQueue uses.
	l := f.lists[source]
	if len(l) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	last := l[len(l)-1]
	f.lists[source] = l[:len(l)-1]
	f.lists[destination] = append([]string{last}, f.lists[destination]...)
	return redis.NewStringResult(last, nil)
}

func (f *fakeRedis) LRem(_ context.Context, key string, count int64, value any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var (
		kept    []string
		removed int64
	)
	for _, v := range f.lists[key] {
		if v == value.(string) && removed < count {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.lists[key] = kept
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) LRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	return redis.NewStringSliceResult(append([]string(nil), f.lists[key]...), nil)
}

func (f *fakeRedis) ZAddNX(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	var fresh []redis.Z
	for _, m := range members {
		if _, ok := f.zsets[key][m.Member.(string)]; !ok {
			fresh = append(fresh, m)
		}
	}
	f.mu.Unlock()
	return f.ZAdd(ctx, key, fresh...)
}

func (f *fakeRedis) ZScore(_ context.Context, key, member string) *redis.FloatCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewFloatResult(0, f.err)
	}
	score, ok := f.zsets[key][member]
	if !ok {
		return redis.NewFloatResult(0, redis.Nil)
	}
	return redis.NewFloatResult(score, nil)
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	for _, m := range members {
		f.zsets[key][m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) ZRangeByScore(_ context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	max, _ := strconv.ParseFloat(opt.Max, 64)
	var out []string
	for m, score := range f.zsets[key] {
		if score <= max {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.zsets[key][out[i]] < f.zsets[key][out[j]] })
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range members {
		if _, ok := f.zsets[key][m.(string)]; ok {
			delete(f.zsets[key], m.(string))
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

var _ redisClient = (*redis.Client)(nil)

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "linkup:mail")
	ctx := context.Background()

	first := NewJob("u1", "a@b.co", IntentVerify)
	second := NewJob("u2", "c@d.co", IntentForgotPassword)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	assert.Len(t, rdb.lists["linkup:mail:pending"], 2)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "jobs are consumed in FIFO order")

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, IntentForgotPassword, got.Intent)

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisQueue_RetryPromoteFail(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "q")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Retry(ctx, Job{ID: "later", Attempt: 1}, now.Add(time.Minute)))
	require.NoError(t, q.Retry(ctx, Job{ID: "due", Attempt: 2}, now.Add(-time.Second)))

	n, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, rdb.zsets["q:delayed"], 1)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "due", got.ID)
	assert.Equal(t, 2, got.Attempt)

	require.NoError(t, q.Fail(ctx, *got, "boom"))
	require.Len(t, rdb.lists["q:failed"], 1)
	assert.Contains(t, rdb.lists["q:failed"][0], `"reason":"boom"`)
}

func TestRedisQueue_Errors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	q := NewRedisQueue(rdb, "q")
	ctx := context.Background()

	assert.ErrorContains(t, q.Enqueue(ctx, Job{}), "connection refused")
	_, err := q.Dequeue(ctx, time.Second)
	assert.ErrorContains(t, err, "redis blmove")
	assert.ErrorContains(t, q.Retry(ctx, Job{}, time.Now()), "redis zadd")
	_, err = q.PromoteDue(ctx, time.Now())
	assert.ErrorContains(t, err, "redis zrangebyscore")
}

func TestRedisQueue_BadPayload(t *testing.T) {
	rdb := newFakeRedis()
	rdb.lists["q:pending"] = []string{"not json"}
	q := NewRedisQueue(rdb, "q")

	_, err := q.Dequeue(context.Background(), time.Second)
	assert.ErrorContains(t, err, "decode job")
	assert.Empty(t, rdb.lists["q:processing"], "undecodable payloads are dropped")
	assert.Empty(t, rdb.zsets["q:leases"])
}

func TestRedisQueue_ReleaseOnOutcome(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "q")
	ctx := context.Background()

	for _, id := range []string{"done", "again", "dead"} {
		require.NoError(t, q.Enqueue(ctx, Job{ID: id}))
	}

	done, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	again, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	dead, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Len(t, rdb.lists["q:processing"], 3)
	assert.Len(t, rdb.zsets["q:leases"], 3)

	require.NoError(t, q.Ack(ctx, *done))
	again.Attempt++
	require.NoError(t, q.Retry(ctx, *again, time.Now().Add(time.Minute)))
	require.NoError(t, q.Fail(ctx, *dead, "smtp down"))

	assert.Empty(t, rdb.lists["q:processing"])
	assert.Empty(t, rdb.zsets["q:leases"])
	assert.Len(t, rdb.zsets["q:delayed"], 1)
	assert.Len(t, rdb.lists["q:failed"], 1)
}

func TestRedisQueue_RedeliversUnreleasedJob(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "q")
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewJob("u1", "a@b.co", IntentVerify)))
	taken, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	// The worker dies here without Ack, Retry or Fail.

	n, err := q.PromoteDue(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "lease still running")

	n, err = q.PromoteDue(ctx, now.Add(DefaultVisibilityTimeout))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, rdb.lists["q:processing"])

	again, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, taken.ID, again.ID)
	assert.Equal(t, taken.Attempt, again.Attempt)
}

func TestRedisQueue_LeasesOrphanedEntries(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "q")
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Moved by BLMOVE but never leased.
	payload, err := encodeJob(Job{ID: "orphan"})
	require.NoError(t, err)
	rdb.lists["q:processing"] = []string{payload}

	n, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, rdb.zsets["q:leases"], payload)

	n, err = q.PromoteDue(ctx, now.Add(DefaultVisibilityTimeout))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{payload}, rdb.lists["q:pending"])
}

func TestDispatcher_AcksRedisJobs(t *testing.T) {
	rdb := newFakeRedis()
	q := NewRedisQueue(rdb, "q")
	ctx := context.Background()
	d := newTestDispatcher(q, func(ctx context.Context, job Job) error { return nil })

	require.NoError(t, q.Enqueue(ctx, NewJob("u1", "a@b.co", IntentVerify)))
	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	d.Process(ctx, *job)

	assert.Empty(t, rdb.lists["q:pending"])
	assert.Empty(t, rdb.lists["q:processing"])
	assert.Empty(t, rdb.zsets["q:leases"])
}
