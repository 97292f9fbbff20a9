package concurrency

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrActorExists is returned by Spawn when the name is already registered.
	ErrActorExists = errors.New("actor already exists")
	// ErrActorNotFound is returned by Tell for names that are not registered.
	ErrActorNotFound = errors.New("actor not found")
	// ErrSystemStopped is returned by Spawn after Shutdown.
	ErrSystemStopped = errors.New("actor system stopped")
)

// System is a registry of named actors sharing one message type. Lookups and
// mutations are spread over independently locked shards.
type System[M any] struct {
	name   string
	shards []*shard[M]
	mask   uint32
	size   atomic.Int64
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

type shard[M any] struct {
	mu     sync.RWMutex
	actors map[string]*Actor[M]
}

// NewSystem creates an actor system with shardCount shards, rounded up to a
// power of two.
func NewSystem[M any](name string, shardCount int, logger *zap.Logger) *System[M] {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard[M], m)
	for i := range shards {
		shards[i] = &shard[M]{actors: make(map[string]*Actor[M])}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &System[M]{
		name:   name,
		shards: shards,
		mask:   m - 1,
		logger: logger.With(zap.String("system", name)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *System[M]) shard(name string) *shard[M] {
	return s.shards[fnv32(name)&s.mask]
}

// Spawn registers a new actor under name and starts its mailbox loop.
func (s *System[M]) Spawn(name string, handler Handler[M]) (*Actor[M], error) {
	if s.stopped.Load() {
		return nil, ErrSystemStopped
	}

	sh := s.shard(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.actors[name]; ok {
		return nil, ErrActorExists
	}

	a := newActor(name, handler, s.logger)
	sh.actors[name] = a
	s.size.Add(1)
	a.start(s.ctx)
	return a, nil
}

// Lookup returns the actor registered under name.
func (s *System[M]) Lookup(name string) (*Actor[M], bool) {
	sh := s.shard(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	a, ok := sh.actors[name]
	return a, ok
}

// Tell sends msg to the actor registered under name.
func (s *System[M]) Tell(name string, msg M) error {
	a, ok := s.Lookup(name)
	if !ok {
		return ErrActorNotFound
	}
	return a.Tell(msg)
}

// Remove unregisters a and stops it. It reports whether a was still
// registered; removing an actor twice is a no-op.
func (s *System[M]) Remove(a *Actor[M]) bool {
	sh := s.shard(a.name)
	sh.mu.Lock()
	current, ok := sh.actors[a.name]
	if ok && current == a {
		delete(sh.actors, a.name)
		s.size.Add(-1)
	}
	sh.mu.Unlock()

	a.Stop()
	return ok && current == a
}

// Len returns the number of registered actors.
func (s *System[M]) Len() int {
	return int(s.size.Load())
}

// Range calls fn for every registered actor.
func (s *System[M]) Range(fn func(*Actor[M])) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		actors := make([]*Actor[M], 0, len(sh.actors))
		for _, a := range sh.actors {
			actors = append(actors, a)
		}
		sh.mu.RUnlock()

		for _, a := range actors {
			fn(a)
		}
	}
}

// Shutdown stops accepting new actors and cancels the running ones.
func (s *System[M]) Shutdown() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Stopping actor system", zap.Int("actors", s.Len()))
	s.Range(func(a *Actor[M]) {
		s.Remove(a)
	})
	s.cancel()
}

// fnv32 hashes a string to uint32.
func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
