package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbgate/pkg/adapters/redis"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/session"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:lock:")
	locker2 := redis.NewLocker(client, "test:lock:") // Same prefix -> contention
	ctx := context.Background()
	key := "shared-resource"

	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:lock:shared-resource"))
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlockOld, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlockNew, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, unlockOld(ctx), redis.ErrLockNotHeld)
	assert.True(t, mr.Exists("test:lock:k"), "the new holder keeps the lock")
	require.NoError(t, unlockNew(ctx))
}

func TestRedisLocker_WithSessionManager(t *testing.T) {
	_, client := newClient(t)
	mgr := session.NewManager(redis.NewFromClient(client),
		session.WithLocker(redis.NewLocker(client, "verbgate:")),
	)
	ctx := context.Background()

	choice := domain.NewPendingChoice("c1", "t1", "send report", nil,
		[]domain.CandidateVerb{{Verb: "report.send.v1"}, {Verb: "report.send.v2"}}, time.Now())
	require.NoError(t, mgr.Save(ctx, "s1", choice))

	got, err := mgr.Consume(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	_, err = mgr.Consume(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNoPendingChoice)
}
