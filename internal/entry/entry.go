// Package entry parses scenario identifiers and classifies them into test
// categories and prerequisite chains.
//
// An identifier has the form <category>_<index>[-<tag>...], for example
// "memory_kv_prereq_0" or "memory_kv_12-customer". Categories ending in
// "_prereq" build the state that the rest of their family depends on.
package entry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const prereqSuffix = "_prereq"

var ErrMalformedID = errors.New("malformed scenario id")

// Entry is a parsed scenario identifier.
type Entry struct {
	ID       string
	Category string
	Index    int
}

// Parse splits id into category and index.
func Parse(id string) (Entry, error) {
	head := id
	if i := strings.IndexByte(id, '-'); i >= 0 {
		head = id[:i]
	}
	sep := strings.LastIndexByte(head, '_')
	if sep <= 0 || sep == len(head)-1 {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	idx, err := strconv.Atoi(head[sep+1:])
	if err != nil || idx < 0 {
		return Entry{}, fmt.Errorf("%w: %q has no numeric index", ErrMalformedID, id)
	}
	return Entry{ID: id, Category: head[:sep], Index: idx}, nil
}

// Prereq reports whether the entry belongs to a prerequisite category.
func (e Entry) Prereq() bool {
	return strings.HasSuffix(e.Category, prereqSuffix)
}

// BaseCategory is the category family shared by a prerequisite category and
// the categories that depend on it.
func (e Entry) BaseCategory() string {
	return strings.TrimSuffix(e.Category, prereqSuffix)
}

// FirstInChain reports whether the entry starts a prerequisite chain.
func (e Entry) FirstInChain() bool {
	return e.Prereq() && e.Index == 0
}

func (e Entry) String() string {
	return e.ID
}
