package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Key", "Value")
	assert.Equal(t, []string{"Key", "Value"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("server.address", "127.0.0.1:7878")
	require.Len(t, table.Rows(), 1)
	assert.Equal(t, []string{"server.address", "127.0.0.1:7878"}, table.Rows()[0])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Key", "Value")
	table.AddRow("server.threads", "4")

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(table))

	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "VALUE")
	assert.Contains(t, out, "server.threads")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{{"logging.level", "INFO"}}))

	out := buf.String()
	assert.Contains(t, out, "logging.level")
	assert.Contains(t, out, "INFO")
	assert.NotContains(t, out, "KEY")
}
