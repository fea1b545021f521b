package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterFormatsColumnTypes(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(&buf, DefaultCSVOptions())

	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	approved := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, exporter.WriteHeader(
		[]string{"id", "status", "pool", "approval_time", "completion_time"}))
	require.NoError(t, exporter.WriteRow(
		[]any{id, "Approved", true, &approved, (*time.Time)(nil)}))
	require.NoError(t, exporter.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,status,pool,approval_time,completion_time", lines[0])
	assert.Equal(t,
		"11111111-2222-3333-4444-555555555555,Approved,true,2026-07-01T12:00:00Z,",
		lines[1])
}

func TestCSVExporterRespectsOptions(t *testing.T) {
	var buf bytes.Buffer
	options := DefaultCSVOptions()
	options.Delimiter = ';'
	options.IncludeHeader = false
	options.NullValue = "n/a"
	exporter := NewCSVExporter(&buf, options)

	require.NoError(t, exporter.WriteHeader([]string{"id", "status"}))
	require.NoError(t, exporter.WriteRow([]any{"req-1", nil}))
	require.NoError(t, exporter.Flush())

	assert.Equal(t, "req-1;n/a\n", buf.String())
}

func TestExcelExporterRoundTrips(t *testing.T) {
	exporter := NewExcelExporter(DefaultExcelOptions())
	defer exporter.Close()

	require.NoError(t, exporter.WriteHeader([]string{"id", "status"}))
	require.NoError(t, exporter.WriteRow([]any{"req-1", "Complete"}))

	var buf bytes.Buffer
	require.NoError(t, exporter.WriteTo(&buf))
	assert.NotZero(t, buf.Len())
}
