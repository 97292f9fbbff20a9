package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// ErrActorStopped is returned by Tell once the actor no longer accepts messages.
var ErrActorStopped = errors.New("actor stopped")

// Handler processes one message. Calls for the same actor never overlap and
// follow the order in which messages were told. A non-nil error stops the actor.
type Handler[M any] func(ctx context.Context, msg M) error

// Actor owns a mailbox and a single goroutine draining it.
type Actor[M any] struct {
	name    string
	mailbox *Queue[M]
	handler Handler[M]
	logger  *zap.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func newActor[M any](name string, handler Handler[M], logger *zap.Logger) *Actor[M] {
	return &Actor[M]{
		name: name,
		// Mailboxes are unbounded: Tell only ever costs an enqueue.
		mailbox: NewQueue[M](0, OverflowBlock),
		handler: handler,
		logger:  logger.With(zap.String("actor", name)),
		done:    make(chan struct{}),
	}
}

func (a *Actor[M]) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	go a.run(ctx)
}

func (a *Actor[M]) run(ctx context.Context) {
	defer close(a.done)
	defer a.cancel()

	for {
		msg, err := a.mailbox.Pop(ctx)
		if err != nil {
			return
		}
		if err := a.handle(ctx, msg); err != nil {
			a.setErr(err)
			a.mailbox.Close()
			a.logger.Debug("Actor stopped by handler error", zap.Error(err))
			return
		}
	}
}

func (a *Actor[M]) handle(ctx context.Context, msg M) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Actor handler panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("actor %s panicked: %v", a.name, r)
		}
	}()
	return a.handler(ctx, msg)
}

// Name returns the registry name of the actor.
func (a *Actor[M]) Name() string {
	return a.name
}

// Tell enqueues msg without waiting for it to be handled.
func (a *Actor[M]) Tell(msg M) error {
	if err := a.mailbox.Push(context.Background(), msg); err != nil {
		return ErrActorStopped
	}
	return nil
}

// Stop closes the mailbox. Messages already told are still handled before the
// actor goroutine exits. Stop is idempotent.
func (a *Actor[M]) Stop() {
	a.stopOnce.Do(a.mailbox.Close)
}

// Done is closed once the actor goroutine has exited.
func (a *Actor[M]) Done() <-chan struct{} {
	return a.done
}

// Err returns the handler error that stopped the actor, if any.
func (a *Actor[M]) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Actor[M]) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}
