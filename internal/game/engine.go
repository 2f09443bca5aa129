package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/catalog"
	"go.uber.org/zap"
)

// Notifier delivers one message to one connection. It must not block.
type Notifier interface {
	SendTo(connID string, msg internal.Message[any])
}

// Archive stores finished games.
type Archive interface {
	SaveResult(ctx context.Context, result internal.GameResult) error
}

type Config struct {
	RoundDelay          time.Duration
	SafeVisitDelay      time.Duration
	AccusationTimeout   time.Duration
	ProposalVoteTimeout time.Duration // zero disables the forced tally
}

func DefaultConfig() Config {
	return Config{
		RoundDelay:          4 * time.Second,
		SafeVisitDelay:      2 * time.Second,
		AccusationTimeout:   5 * time.Minute,
		ProposalVoteTimeout: 2 * time.Minute,
	}
}

// Engine runs every room's state machine. Each intent locks one room,
// mutates it, queues outbound messages and delivers them after unlocking.
type Engine struct {
	registry *Registry
	cat      *catalog.Catalog
	gen      *Generator
	clock    Clock
	rng      *Random
	notifier Notifier
	archive  Archive
	log      *zap.Logger
	cfg      Config
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }
func WithRandom(r *Random) Option { return func(e *Engine) { e.rng = r } }
func WithArchive(a Archive) Option { return func(e *Engine) { e.archive = a } }
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }
func WithConfig(c Config) Option { return func(e *Engine) { e.cfg = c } }

func NewEngine(cat *catalog.Catalog, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		cat:      cat,
		clock:    RealClock(),
		rng:      NewRandom(time.Now().UnixNano()),
		notifier: notifier,
		log:      zap.NewNop(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.gen = NewGenerator(cat, e.rng)
	e.registry = NewRegistry(e.rng, e.clock, cat.Characters)
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

// SetNotifier swaps the delivery target. Used when the transport is built after the engine.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// withConn runs fn under the lock of the room the connection belongs to.
func (e *Engine) withConn(connID string, fn func(room *internal.Room, out *outbox) error) error {
	room, err := e.registry.RoomOf(connID)
	if err != nil {
		return err
	}
	return e.withRoom(room, fn)
}

func (e *Engine) withRoom(room *internal.Room, fn func(room *internal.Room, out *outbox) error) error {
	out := newOutbox(room)
	err := func() error {
		room.Mu.Lock()
		defer room.Mu.Unlock()
		defer func() { room.LastActive = e.clock.Now() }()
		return fn(room, out)
	}()
	e.flush(out)
	return err
}

// playerFor resolves the sender of an intent inside its room.
func playerFor(room *internal.Room, connID string) (*internal.Player, error) {
	p := room.PlayerByConn(connID)
	if p == nil {
		return nil, illegal("connection is not a player in room %s", room.Code)
	}
	return p, nil
}

func (e *Engine) flush(out *outbox) {
	for _, env := range out.msgs {
		if e.notifier != nil {
			e.notifier.SendTo(env.conn, env.msg)
		}
	}
	if out.result != nil && e.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.SaveResult(ctx, *out.result); err != nil {
			e.log.Error("[flush] failed to archive game result",
				zap.String("room", out.result.RoomCode), zap.Error(err))
		}
	}
}

func newID() string {
	return uuid.NewString()
}
