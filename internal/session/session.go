// Package session hosts independent browsing sessions over the shared catalog.
// Each session owns a state store plus a debouncer for high frequency inputs.
package session

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/abgdnv/catalog/internal/debounce"
	"github.com/abgdnv/catalog/internal/state"
	"github.com/google/uuid"
)

// PriceCeilingPadding is added to the catalog max price to get the upper end
// of the price slider.
const PriceCeilingPadding = 10

// View is what clients read from a session.
type View struct {
	ID     string       `json:"id"`
	Status state.Status `json:"status"`
	state.State
	// Pending is true while a debounced filter value waits for commit.
	Pending        bool                     `json:"pending"`
	PendingFilters map[state.FilterType]any `json:"pendingFilters,omitempty"`
	PriceCeiling   int64                    `json:"priceCeiling"`
}

// Session is one client's browsing state.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	lastSeen  atomic.Int64

	store     *state.Store
	debouncer *debounce.Debouncer[state.FilterType, any]
	logger    *slog.Logger
}

func newSession(initial state.State, window time.Duration, now time.Time, logger *slog.Logger) *Session {
	s := &Session{
		id:        uuid.New(),
		createdAt: now,
		store:     state.NewStore(initial),
	}
	s.logger = logger.With("session_id", s.id.String())
	s.debouncer = debounce.New(window, s.commit)
	s.lastSeen.Store(now.UnixNano())
	return s
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastSeen is the last time the session was looked up.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// State returns the committed state.
func (s *Session) State() state.State {
	return s.store.State()
}

// SetFilter changes one criteria field. Discrete selections apply at once;
// search text and price are validated now and committed once input settles.
// applied reports whether the change is already visible in the returned state.
func (s *Session) SetFilter(ft state.FilterType, value any) (st state.State, applied bool, err error) {
	action := state.SetFilter{Type: ft, Value: value}
	if !ft.Debounced() {
		st, err = s.store.Dispatch(action)
		return st, err == nil, err
	}

	current := s.store.State()
	if _, err := state.Reduce(current, action); err != nil {
		return current, false, err
	}
	s.debouncer.Push(ft, value)
	return current, false, nil
}

// ClearFilter drops pending debounced values and resets every criteria field.
func (s *Session) ClearFilter() (state.State, error) {
	s.debouncer.CancelAll()
	return s.store.Dispatch(state.ClearFilter{})
}

// SetDisplay switches the layout.
func (s *Session) SetDisplay(d state.Display) (state.State, error) {
	return s.store.Dispatch(state.SetDisplay{Display: d})
}

// Flush commits pending debounced values immediately.
func (s *Session) Flush() {
	s.debouncer.Flush()
}

// View returns the committed state together with pending input.
func (s *Session) View() View {
	return s.view(s.store.State())
}

func (s *Session) view(st state.State) View {
	v := View{
		ID:           s.id.String(),
		Status:       st.Status(),
		State:        st,
		PriceCeiling: st.MaxPrice + PriceCeilingPadding,
	}
	for _, ft := range []state.FilterType{state.FilterSearch, state.FilterPrice} {
		if value, ok := s.debouncer.Pending(ft); ok {
			if v.PendingFilters == nil {
				v.PendingFilters = make(map[state.FilterType]any)
			}
			v.PendingFilters[ft] = value
		}
	}
	v.Pending = len(v.PendingFilters) > 0
	return v
}

// Subscribe streams views of every committed state, starting with the current one.
func (s *Session) Subscribe() (<-chan View, func()) {
	states, cancel := s.store.Subscribe()
	views := make(chan View)
	done := make(chan struct{})
	go func() {
		defer close(views)
		for st := range states {
			select {
			case views <- s.view(st):
			case <-done:
				return
			}
		}
	}()
	var once atomic.Bool
	return views, func() {
		if once.CompareAndSwap(false, true) {
			close(done)
			cancel()
		}
	}
}

func (s *Session) dispatch(a state.Action) {
	if _, err := s.store.Dispatch(a); err != nil {
		s.logger.Warn("dropped state transition", "action", a, "error", err)
	}
}

func (s *Session) commit(ft state.FilterType, value any) {
	s.logger.Debug("committing debounced filter", "type", ft, "value", value)
	s.dispatch(state.SetFilter{Type: ft, Value: value})
}

// close stops the debouncer and ends every subscription.
func (s *Session) close() {
	s.debouncer.Stop()
	s.store.Close()
}
