package permission

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSetNormalizes(t *testing.T) {
	s := NewSet(" crm.read ", "finance.write", "crm.read", "", "  ")

	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"crm.read", "finance.write"}, s.Names())
	require.True(t, s.Has("crm.read"))
	require.False(t, s.Has(" crm.read "))
}

func TestSetQueries(t *testing.T) {
	s := NewSet("crm.read", "jobs.read", "quotes.approve")

	require.True(t, s.HasAny("spc.view", "jobs.read"))
	require.False(t, s.HasAny("spc.view", "finance.write"))
	require.True(t, s.HasAll("crm.read", "quotes.approve"))
	require.False(t, s.HasAll("crm.read", "finance.write"))
	require.True(t, s.HasAll())
}

func TestZeroSetIsEmpty(t *testing.T) {
	var s Set

	require.Equal(t, 0, s.Len())
	require.False(t, s.Has("anything"))
	require.NotNil(t, s.Names())
	require.True(t, s.Equal(NewSet()))
}

func TestNamesReturnsCopy(t *testing.T) {
	s := NewSet("a", "b")
	names := s.Names()
	names[0] = "mutated"

	require.True(t, s.Has("a"))
}

func TestSetJSON(t *testing.T) {
	s := NewSet("workflow.run", "crm.read")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `["crm.read","workflow.run"]`, string(data))

	var decoded Set
	require.NoError(t, json.Unmarshal([]byte(`["b","a","b"]`), &decoded))
	require.Equal(t, []string{"a", "b"}, decoded.Names())

	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &decoded))
}
