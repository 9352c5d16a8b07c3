// Package memory implements the bounded short-term and long-term key/value
// stores exposed to agents as the memory tool suite.
package memory

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tier names one of the two independent stores.
type Tier string

const (
	ShortTerm Tier = "short_term"
	LongTerm  Tier = "long_term"
)

func (t Tier) title() string {
	switch t {
	case ShortTerm:
		return "Short term"
	case LongTerm:
		return "Long term"
	}
	return string(t)
}

// Limits bounds a tier. MaxEntryLength counts code points, not bytes.
type Limits struct {
	MaxEntries     int
	MaxEntryLength int
}

var (
	DefaultShortTermLimits = Limits{MaxEntries: 7, MaxEntryLength: 300}
	DefaultLongTermLimits  = Limits{MaxEntries: 50, MaxEntryLength: 2000}
)

// Result is the outcome of a store operation. A failed operation carries a
// Code and never mutates the store.
type Result struct {
	Code    Code
	Message string
	Value   string
	Keys    []string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Code == ""
}

// Err returns the failure as an *Error, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

func success(msg string) Result {
	return Result{Message: msg}
}

func failure(code Code, msg string) Result {
	return Result{Code: code, Message: msg}
}

type bucket struct {
	limits  Limits
	entries *orderedmap.OrderedMap[string, string]
}

func newBucket(l Limits) *bucket {
	return &bucket{limits: l, entries: orderedmap.New[string, string]()}
}

func (b *bucket) fits(value string) bool {
	return utf8.RuneCountInString(value) <= b.limits.MaxEntryLength
}

// Store holds one short-term and one long-term tier. A Store belongs to a
// single scenario and is not safe for concurrent use.
type Store struct {
	tiers map[Tier]*bucket
}

// New creates an empty store with the default limits.
func New() *Store {
	return NewWithLimits(DefaultShortTermLimits, DefaultLongTermLimits)
}

// NewWithLimits creates an empty store with explicit per-tier limits.
func NewWithLimits(short, long Limits) *Store {
	return &Store{
		tiers: map[Tier]*bucket{
			ShortTerm: newBucket(short),
			LongTerm:  newBucket(long),
		},
	}
}

// Add inserts a new key. Capacity is checked first, then entry length, then
// key uniqueness.
func (s *Store) Add(t Tier, key, value string) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	if b.entries.Len() >= b.limits.MaxEntries {
		return capacityFull(t)
	}
	if !b.fits(value) {
		return entryTooLong(b.limits.MaxEntryLength)
	}
	if _, exists := b.entries.Get(key); exists {
		return duplicateKey()
	}
	b.entries.Set(key, value)
	return success("Key added.")
}

// Remove deletes key from the tier.
func (s *Store) Remove(t Tier, key string) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	if _, existed := b.entries.Delete(key); !existed {
		return keyNotFound()
	}
	return success("Key removed.")
}

// Replace overwrites an existing key. The tier size does not change, so only
// the entry length bound applies.
func (s *Store) Replace(t Tier, key, value string) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	if _, exists := b.entries.Get(key); !exists {
		return keyNotFound()
	}
	if !b.fits(value) {
		return entryTooLong(b.limits.MaxEntryLength)
	}
	b.entries.Set(key, value)
	return success("Key replaced.")
}

// Clear empties the tier.
func (s *Store) Clear(t Tier) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	b.entries = orderedmap.New[string, string]()
	return success(fmt.Sprintf("%s memory cleared.", t.title()))
}

// Retrieve returns the value stored under key in Result.Value.
func (s *Store) Retrieve(t Tier, key string) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	v, exists := b.entries.Get(key)
	if !exists {
		return keyNotFound()
	}
	return Result{Value: v}
}

// ListKeys returns the tier's keys in Result.Keys. The order follows
// insertion but is not part of the contract.
func (s *Store) ListKeys(t Tier) Result {
	b, ok := s.tiers[t]
	if !ok {
		return invalidTier(t)
	}
	keys := make([]string, 0, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return Result{Keys: keys}
}

// RetrieveAll returns a copy of every entry in the tier.
func (s *Store) RetrieveAll(t Tier) (map[string]string, error) {
	b, ok := s.tiers[t]
	if !ok {
		return nil, invalidTier(t).Err()
	}
	all := make(map[string]string, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		all[pair.Key] = pair.Value
	}
	return all, nil
}

// Len returns the number of entries in the tier, or zero for an unknown tier.
func (s *Store) Len(t Tier) int {
	if b, ok := s.tiers[t]; ok {
		return b.entries.Len()
	}
	return 0
}

// Limits returns the bounds configured for the tier.
func (s *Store) Limits(t Tier) Limits {
	if b, ok := s.tiers[t]; ok {
		return b.limits
	}
	return Limits{}
}

// Text converts a tool argument into the text form stored in memory.
// Strings pass through, JSON numbers keep their literal spelling and any other
// value is JSON encoded.
//
// The result is JSON text, not Python str() text: booleans are stored as
// "true"/"false" rather than "True"/"False", null is stored as "" rather
// than "None", and nested values use JSON quoting. Snapshots written by a
// Python harness may therefore differ for non-string arguments.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
