package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
	"github.com/rs/zerolog/log"
)

var (
	// ErrBattleNotFound is returned for an unknown or removed battle ID.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrTooManyBattles is returned by Create when the registry is full.
	ErrTooManyBattles = errors.New("too many active battles")
	// ErrClosed is returned by Create once Close has been called.
	ErrClosed = errors.New("registry closed")
)

// Hook attaches a collaborator to a newly created battle. The returned func, if any,
// detaches it when the battle is removed.
type Hook func(id uuid.UUID, e *engine.Engine) (detach func())

// Summary is the listing view of one battle.
type Summary struct {
	ID            uuid.UUID     `json:"id"`
	Phase         engine.Phase  `json:"phase"`
	CurrentRound  int           `json:"current_round"`
	TotalRounds   int           `json:"total_rounds"`
	PlayerScore   int           `json:"player_score"`
	OpponentScore int           `json:"opponent_score"`
	Winner        engine.Winner `json:"winner,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type entry struct {
	engine    *engine.Engine
	detach    []func()
	createdAt time.Time
}

// Registry owns the engine of every live battle, keyed by battle ID. All battles share
// one question source so the bank is fetched through the same collaborator.
type Registry struct {
	cfg        engine.Config
	source     questionbank.Source
	opts       []engine.Option
	maxBattles int

	mu       sync.RWMutex
	battles  map[uuid.UUID]*entry
	creating int
	hooks    []Hook
	closed   bool
}

// New creates a registry. maxBattles <= 0 means unlimited.
func New(cfg engine.Config, source questionbank.Source, maxBattles int, opts ...engine.Option) *Registry {
	return &Registry{
		cfg:        cfg,
		source:     source,
		opts:       opts,
		maxBattles: maxBattles,
		battles:    make(map[uuid.UUID]*entry),
	}
}

// OnCreate registers a hook run for every battle created afterwards.
func (r *Registry) OnCreate(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Create builds a new engine in the ready phase and runs the hooks on it. The battle
// becomes visible to Get, List and Remove only after every hook has attached.
func (r *Registry) Create() (uuid.UUID, *engine.Engine, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return uuid.Nil, nil, ErrClosed
	}
	if r.maxBattles > 0 && len(r.battles)+r.creating >= r.maxBattles {
		r.mu.Unlock()
		return uuid.Nil, nil, ErrTooManyBattles
	}
	r.creating++
	hooks := append([]Hook(nil), r.hooks...)
	r.mu.Unlock()

	id := uuid.New()
	logger := log.With().Str("battle_id", id.String()).Logger()
	opts := append(append([]engine.Option(nil), r.opts...), engine.WithLogger(logger))
	e := engine.New(r.cfg, r.source, opts...)
	ent := &entry{engine: e, createdAt: time.Now()}

	for _, h := range hooks {
		if d := h(id, e); d != nil {
			ent.detach = append(ent.detach, d)
		}
	}

	r.mu.Lock()
	r.creating--
	if r.closed {
		r.mu.Unlock()
		ent.close()
		return uuid.Nil, nil, ErrClosed
	}
	r.battles[id] = ent
	r.mu.Unlock()

	log.Info().Str("battle_id", id.String()).Msg("battle created")
	return id, e, nil
}

func (ent *entry) close() {
	for _, d := range ent.detach {
		d()
	}
	ent.engine.Close()
}

// Get returns the engine of a live battle.
func (r *Registry) Get(id uuid.UUID) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.battles[id]
	if !ok {
		return nil, ErrBattleNotFound
	}
	return ent.engine, nil
}

// List summarises every live battle, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.battles))
	for id, ent := range r.battles {
		s := ent.engine.Snapshot()
		out = append(out, Summary{
			ID:            id,
			Phase:         s.Phase,
			CurrentRound:  s.CurrentRound,
			TotalRounds:   s.TotalRounds,
			PlayerScore:   s.PlayerScore,
			OpponentScore: s.OpponentScore,
			Winner:        s.Winner,
			CreatedAt:     ent.createdAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live battles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.battles)
}

// Remove detaches collaborators and closes the battle's engine.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	ent, ok := r.battles[id]
	if ok {
		delete(r.battles, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrBattleNotFound
	}

	ent.close()
	log.Info().Str("battle_id", id.String()).Msg("battle removed")
	return nil
}

// Close removes every battle and refuses new ones. A battle still running its hooks is
// closed when they return.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	ids := make([]uuid.UUID, 0, len(r.battles))
	for id := range r.battles {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Remove(id)
	}
}
