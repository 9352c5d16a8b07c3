package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/recall/internal/memory"
	"github.com/felixgeelhaar/recall/internal/provider"
	"github.com/felixgeelhaar/recall/internal/scenario"
)

func newMemoryRegistry(t *testing.T) (*ToolRegistry, *memory.Store) {
	t.Helper()
	st := memory.New()
	tr := NewToolRegistry()
	require.NoError(t, RegisterMemoryTools(tr, st))
	return tr, st
}

func call(t *testing.T, tr *ToolRegistry, name, args string) string {
	t.Helper()
	out, err := tr.Execute(context.Background(), provider.ToolCall{ID: "c1", Name: name, Args: args})
	require.NoError(t, err)
	return out
}

func TestRegisterMemoryTools(t *testing.T) {
	tr, _ := newMemoryRegistry(t)
	assert.Len(t, tr.Definitions(), 13)

	has := func(name string) bool {
		_, ok := tr.Lookup(name)
		return ok
	}
	for _, op := range []string{"add", "remove", "replace", "clear", "retrieve", "list_keys"} {
		assert.True(t, has(MemoryToolName(memory.ShortTerm, op)), op)
		assert.True(t, has(MemoryToolName(memory.LongTerm, op)), op)
	}
	assert.True(t, has("short_term_memory_retrieve_all"))
	assert.False(t, has("long_term_memory_retrieve_all"))

	def, ok := tr.Lookup("long_term_memory_add")
	require.True(t, ok)
	assert.Contains(t, def.Description, "long-term memory")
	assert.Equal(t, []string{"key", "value"}, def.Parameters["required"])

	def, ok = tr.Lookup("short_term_memory_clear")
	require.True(t, ok)
	assert.Equal(t, []string{}, def.Parameters["required"])

	assert.Error(t, RegisterMemoryTools(tr, memory.New()), "second registration should collide")
}

func TestMemoryToolRegistry(t *testing.T) {
	fns := MemoryToolRegistry().Functions()
	require.Len(t, fns, 13)
	assert.Equal(t, "long_term_memory_add", fns[0].Function.Name)
	assert.Equal(t, "short_term_memory_retrieve_all", fns[12].Function.Name)
}

func TestUnknownTools(t *testing.T) {
	sc := &scenario.Scenario{ID: "memory_kv_0", Turns: []scenario.Turn{
		{Question: "a", Steps: [][]scenario.Call{
			{{Name: "short_term_memory_add"}, {Name: "web_search"}},
			{{Name: "long_term_memory_retrieve_all"}},
		}},
		{Question: "b", Steps: [][]scenario.Call{{{Name: "web_search"}, {Name: "long_term_memory_list_keys"}}}},
	}}
	assert.Equal(t, []string{"web_search", "long_term_memory_retrieve_all"}, UnknownTools(sc))
	assert.Empty(t, UnknownTools(&scenario.Scenario{ID: "memory_kv_0"}))
}

func TestMemoryTools_Conversation(t *testing.T) {
	tr, st := newMemoryRegistry(t)

	assert.Equal(t, `{"status":"Key added."}`, call(t, tr, "short_term_memory_add", `{"key":"city","value":"Paris"}`))
	assert.Equal(t, `{"value":"Paris"}`, call(t, tr, "short_term_memory_retrieve", `{"key":"city"}`))
	assert.Equal(t, `{"keys":["city"]}`, call(t, tr, "short_term_memory_list_keys", `{}`))
	assert.Equal(t, `{"error":"Key name must be unique."}`, call(t, tr, "short_term_memory_add", `{"key":"city","value":"Rome"}`))
	assert.Equal(t, `{"status":"Key replaced."}`, call(t, tr, "short_term_memory_replace", `{"key":"city","value":"Rome"}`))
	assert.Equal(t, `{"city":"Rome"}`, call(t, tr, "short_term_memory_retrieve_all", ""))
	assert.Equal(t, `{"status":"Key removed."}`, call(t, tr, "short_term_memory_remove", `{"key":"city"}`))
	assert.Equal(t, `{"error":"Key not found."}`, call(t, tr, "short_term_memory_retrieve", `{"key":"city"}`))
	assert.Equal(t, `{"keys":[]}`, call(t, tr, "short_term_memory_list_keys", ""))

	assert.Equal(t, `{"status":"Key added."}`, call(t, tr, "long_term_memory_add", `{"key":"pet","value":"cat"}`))
	assert.Equal(t, `{"status":"Long term memory cleared."}`, call(t, tr, "long_term_memory_clear", ""))
	assert.Zero(t, st.Len(memory.LongTerm))
}

func TestMemoryTools_TiersAreIndependent(t *testing.T) {
	tr, st := newMemoryRegistry(t)

	call(t, tr, "short_term_memory_add", `{"key":"k","value":"short"}`)
	call(t, tr, "long_term_memory_add", `{"key":"k","value":"long"}`)

	assert.Equal(t, "short", st.Retrieve(memory.ShortTerm, "k").Value)
	assert.Equal(t, "long", st.Retrieve(memory.LongTerm, "k").Value)
}

func TestMemoryTools_CapacityAndLength(t *testing.T) {
	tr, _ := newMemoryRegistry(t)

	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		assert.Equal(t, `{"status":"Key added."}`, call(t, tr, "short_term_memory_add", `{"key":"`+k+`","value":"v"}`))
	}
	assert.Equal(t, `{"error":"Short term memory is full. Please clear some entries."}`,
		call(t, tr, "short_term_memory_add", `{"key":"h","value":"v"}`))

	long := strings.Repeat("x", 301)
	out := call(t, tr, "long_term_memory_add", `{"key":"bio","value":"`+long+`"}`)
	assert.Equal(t, `{"status":"Key added."}`, out)
	out = call(t, tr, "short_term_memory_replace", `{"key":"a","value":"`+long+`"}`)
	assert.Contains(t, out, `"error"`)
}

func TestMemoryTools_NumericValuesKeepLiteral(t *testing.T) {
	tr, st := newMemoryRegistry(t)

	call(t, tr, "short_term_memory_add", `{"key":"age","value":42}`)
	call(t, tr, "short_term_memory_add", `{"key":"pi","value":3.10}`)
	call(t, tr, "short_term_memory_add", `{"key":"flag","value":true}`)
	call(t, tr, "short_term_memory_add", `{"key":"tags","value":["a","<b>"]}`)

	assert.Equal(t, "42", st.Retrieve(memory.ShortTerm, "age").Value)
	assert.Equal(t, "3.10", st.Retrieve(memory.ShortTerm, "pi").Value)
	assert.Equal(t, "true", st.Retrieve(memory.ShortTerm, "flag").Value)
	assert.Equal(t, `{"value":"42"}`, call(t, tr, "short_term_memory_retrieve", `{"key":"age"}`))
}

func TestMemoryTools_BadArguments(t *testing.T) {
	tr, _ := newMemoryRegistry(t)
	ctx := context.Background()

	_, err := tr.Execute(ctx, provider.ToolCall{Name: "short_term_memory_add", Args: `{"key":"k"}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "value"`)

	_, err = tr.Execute(ctx, provider.ToolCall{Name: "long_term_memory_remove", Args: `{not json`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestMemoryTools_CancelledContext(t *testing.T) {
	tr, st := newMemoryRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Execute(ctx, provider.ToolCall{Name: "short_term_memory_add", Args: `{"key":"k","value":"v"}`})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, st.Len(memory.ShortTerm))
}
