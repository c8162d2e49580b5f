package stats_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/stats"
)

func TestTableEntriesAreStable(t *testing.T) {
	table := stats.NewTable()
	table.Add("b", 1)
	table.Add("a", 2)
	table.Add("c", 1)
	table.Add("b", 1)

	assert.Equal(t, []stats.Entry{
		{Key: "b", Value: 2},
		{Key: "a", Value: 2},
		{Key: "c", Value: 1},
	}, table.Entries())
	assert.Equal(t, 5, table.Total())
	assert.Equal(t, 3, table.Len())
}

func TestTableJSON(t *testing.T) {
	table := stats.NewTable()
	table.Add("x", 1)
	table.Add("y", 3)

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"y","value":3},{"key":"x","value":1}]`, string(data))

	empty, err := json.Marshal(stats.NewTable())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	var decoded stats.Table
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, table.Entries(), decoded.Entries())
}
