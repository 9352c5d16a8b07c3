package memory

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// State is the persisted form of a Store:
//
//	{"short_term_memory": {...}, "long_term_memory": {...}}
type State struct {
	ShortTerm *orderedmap.OrderedMap[string, string]
	LongTerm  *orderedmap.OrderedMap[string, string]
}

// NewState returns a state with both tiers empty.
func NewState() State {
	return State{
		ShortTerm: orderedmap.New[string, string](),
		LongTerm:  orderedmap.New[string, string](),
	}
}

type stateJSON struct {
	ShortTerm *orderedmap.OrderedMap[string, string] `json:"short_term_memory"`
	LongTerm  *orderedmap.OrderedMap[string, string] `json:"long_term_memory"`
}

type rawStateJSON struct {
	ShortTerm json.RawMessage `json:"short_term_memory"`
	LongTerm  json.RawMessage `json:"long_term_memory"`
}

func (st State) MarshalJSON() ([]byte, error) {
	out := stateJSON{ShortTerm: st.ShortTerm, LongTerm: st.LongTerm}
	if out.ShortTerm == nil {
		out.ShortTerm = orderedmap.New[string, string]()
	}
	if out.LongTerm == nil {
		out.LongTerm = orderedmap.New[string, string]()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts missing or null tiers as empty.
func (st *State) UnmarshalJSON(data []byte) error {
	var raw rawStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	short, err := decodeTier(raw.ShortTerm)
	if err != nil {
		return fmt.Errorf("short_term_memory: %w", err)
	}
	long, err := decodeTier(raw.LongTerm)
	if err != nil {
		return fmt.Errorf("long_term_memory: %w", err)
	}
	st.ShortTerm, st.LongTerm = short, long
	return nil
}

func decodeTier(raw json.RawMessage) (*orderedmap.OrderedMap[string, string], error) {
	m := orderedmap.New[string, string]()
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if err := m.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return m, nil
}

func clone(src *orderedmap.OrderedMap[string, string]) *orderedmap.OrderedMap[string, string] {
	dst := orderedmap.New[string, string]()
	if src == nil {
		return dst
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
	return dst
}

// Snapshot returns a deep copy of both tiers.
func (s *Store) Snapshot() State {
	return State{
		ShortTerm: clone(s.tiers[ShortTerm].entries),
		LongTerm:  clone(s.tiers[LongTerm].entries),
	}
}

// Restore replaces both tiers with copies of st. A state that would break a
// tier's bounds is rejected and the store is left untouched.
func (s *Store) Restore(st State) error {
	short, long := clone(st.ShortTerm), clone(st.LongTerm)
	if err := s.tiers[ShortTerm].admits(ShortTerm, short); err != nil {
		return err
	}
	if err := s.tiers[LongTerm].admits(LongTerm, long); err != nil {
		return err
	}
	s.tiers[ShortTerm].entries = short
	s.tiers[LongTerm].entries = long
	return nil
}

func (b *bucket) admits(t Tier, m *orderedmap.OrderedMap[string, string]) error {
	if m.Len() > b.limits.MaxEntries {
		return fmt.Errorf("%s holds %d entries, limit is %d: %w", t, m.Len(), b.limits.MaxEntries, ErrCapacityFull)
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if !b.fits(pair.Value) {
			return fmt.Errorf("%s entry %q exceeds %d characters: %w", t, pair.Key, b.limits.MaxEntryLength, ErrEntryTooLong)
		}
	}
	return nil
}
