package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		id       string
		category string
		index    int
		prereq   bool
		first    bool
		base     string
	}{
		{"memory_kv_prereq_0", "memory_kv_prereq", 0, true, true, "memory_kv"},
		{"memory_kv_prereq_3", "memory_kv_prereq", 3, true, false, "memory_kv"},
		{"memory_kv_0", "memory_kv", 0, false, false, "memory_kv"},
		{"memory_kv_12-customer-2", "memory_kv", 12, false, false, "memory_kv"},
		{"memory_rec_sum_prereq_0-healthcare", "memory_rec_sum_prereq", 0, true, true, "memory_rec_sum"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e, err := Parse(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.id, e.ID)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.index, e.Index)
			assert.Equal(t, tt.prereq, e.Prereq())
			assert.Equal(t, tt.first, e.FirstInChain())
			assert.Equal(t, tt.base, e.BaseCategory())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, id := range []string{"", "memory", "memory_", "_3", "memory_kv_x", "memory_kv_-1", "memory_kv-3"} {
		t.Run(id, func(t *testing.T) {
			_, err := Parse(id)
			assert.ErrorIs(t, err, ErrMalformedID)
		})
	}
}
