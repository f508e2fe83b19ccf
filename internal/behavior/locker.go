package behavior

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides per-user mutual exclusion around baseline rebuilds
type Locker interface {
	// Lock blocks until the user's lock is held or ctx is done. The returned
	// func releases the lock and is safe to call more than once.
	Lock(ctx context.Context, userID int64) (func(), error)
}

// KeyedMutex is an in-process Locker with one lock per user. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedEntry)}
}

// Lock implements Locker
func (k *KeyedMutex) Lock(ctx context.Context, userID int64) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[userID]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[userID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			k.release(userID, entry)
		})
	}, nil
}

func (k *KeyedMutex) release(userID int64, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, userID)
	}
}

// Len reports how many users currently hold or wait on a lock
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes rebuilds across service replicas with a SET NX PX
// lock per user. The TTL bounds how long a crashed holder can block others.
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		prefix:     "vigil:baseline-lock",
	}
}

// Lock implements Locker
func (l *RedisLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf("%s:%d", l.prefix, userID)
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: redis lock: %v", models.ErrStorageUnavailable, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// A failed release is recovered by the TTL
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}, nil
}

// LockChain acquires several lockers in order and releases them in reverse.
// Putting a KeyedMutex ahead of a RedisLocker keeps same-process contenders
// off the network.
type LockChain []Locker

// Lock implements Locker
func (c LockChain) Lock(ctx context.Context, userID int64) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, locker := range c {
		unlock, err := locker.Lock(ctx, userID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
