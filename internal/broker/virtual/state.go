package virtual

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

// Fill is one executed virtual order. Fills are append-only and never
// mutated after Apply.
type Fill struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Action      domain.Action   `json:"action"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	FilledAt    time.Time       `json:"filled_at"`
}

// State is the full paper-trading ledger of one virtual account.
type State struct {
	Balance   decimal.Decimal
	Positions map[string]domain.Position
	Fills     []Fill
}

// NewState returns an empty ledger with the given starting balance.
func NewState(balance decimal.Decimal) *State {
	return &State{
		Balance:   balance,
		Positions: make(map[string]domain.Position),
	}
}

// Apply books a fill: balance moves by the notional, the signed position
// quantity moves by the fill quantity, and the average price is the
// quantity-weighted mean while the position grows. Reducing a position
// realizes PnL against the average and adds it to the position's running
// total; crossing through zero restarts the average at the fill price.
// Returns the realized PnL of this fill.
func (s *State) Apply(fill Fill) decimal.Decimal {
	notional := fill.Quantity.Mul(fill.Price)
	delta := fill.Quantity
	if fill.Action == domain.ActionSell {
		s.Balance = s.Balance.Add(notional)
		delta = delta.Neg()
	} else {
		s.Balance = s.Balance.Sub(notional)
	}

	pos := s.Positions[fill.Symbol]
	pos.Symbol = fill.Symbol
	realized := decimal.Zero

	switch {
	case pos.Quantity.IsZero() || pos.Quantity.Sign() == delta.Sign():
		// Opening or growing: weighted-average in the fill.
		newQty := pos.Quantity.Add(delta)
		held := pos.Quantity.Abs().Mul(pos.AveragePrice)
		added := delta.Abs().Mul(fill.Price)
		pos.AveragePrice = held.Add(added).Div(newQty.Abs())
		pos.Quantity = newQty
	default:
		// Reducing: realize against the average for the closed lot.
		closed := decimal.Min(pos.Quantity.Abs(), delta.Abs())
		perUnit := fill.Price.Sub(pos.AveragePrice)
		if pos.Quantity.Sign() < 0 {
			perUnit = perUnit.Neg()
		}
		realized = perUnit.Mul(closed)

		pos.Quantity = pos.Quantity.Add(delta)
		if pos.Quantity.IsZero() {
			pos.AveragePrice = decimal.Zero
		} else if pos.Quantity.Sign() == delta.Sign() {
			// Crossed through zero; the remainder is a fresh position.
			pos.AveragePrice = fill.Price
		}
	}

	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	s.Positions[fill.Symbol] = pos
	fill.RealizedPnL = realized
	s.Fills = append(s.Fills, fill)
	return realized
}

// clone deep-copies the state so a failed mutation leaves the stored
// ledger untouched.
func (s *State) clone() *State {
	c := &State{
		Balance:   s.Balance,
		Positions: make(map[string]domain.Position, len(s.Positions)),
		Fills:     make([]Fill, len(s.Fills)),
	}
	for sym, pos := range s.Positions {
		c.Positions[sym] = pos
	}
	copy(c.Fills, s.Fills)
	return c
}

// StateStore loads, mutates and persists one account's ledger atomically.
// The Postgres implementation wraps the callback in a row-locked
// transaction; MemoryStore serves tests and single-process setups.
type StateStore interface {
	// WithState runs fn against the account's ledger and persists the
	// result. A new account starts from the store's initial balance. If fn
	// errors, nothing is persisted.
	WithState(ctx context.Context, accountID string, fn func(*State) error) error

	// State returns a read-only snapshot of the account's ledger.
	State(ctx context.Context, accountID string) (*State, error)
}

// MemoryStore keeps ledgers in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	initial decimal.Decimal
	states  map[string]*State
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore builds an in-memory store seeding new accounts with the
// given balance.
func NewMemoryStore(initialBalance decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		initial: initialBalance,
		states:  make(map[string]*State),
	}
}

func (m *MemoryStore) WithState(ctx context.Context, accountID string, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[accountID]
	if !ok {
		current = NewState(m.initial)
	}

	next := current.clone()
	if err := fn(next); err != nil {
		return err
	}
	m.states[accountID] = next
	return nil
}

func (m *MemoryStore) State(ctx context.Context, accountID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[accountID]
	if !ok {
		return NewState(m.initial), nil
	}
	return current.clone(), nil
}
