package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/wikigraph/extract"
)

func TestGenerateRecords(t *testing.T) {
	shape := corpusShape{items: 4, properties: 6, claims: 3, seed: 7}

	var records []record
	for rec := range generateRecords(shape) {
		records = append(records, rec)
	}
	require.Len(t, records, 10)

	for i, rec := range records[:6] {
		assert.Equal(t, "property", rec.Type)
		assert.Equal(t, generatedDatatypes[i], rec.Datatype)
	}
	for _, rec := range records[6:] {
		assert.Equal(t, "item", rec.Type)
		total := 0
		for _, stmts := range rec.Claims {
			total += len(stmts)
		}
		assert.Equal(t, 3, total)
	}

	t.Run("deterministic for a seed", func(t *testing.T) {
		var again []record
		for rec := range generateRecords(shape) {
			again = append(again, rec)
		}
		assert.Equal(t, records, again)
	})
}

func TestWriteCorpus_ParsesBack(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	n, err := writeCorpus(w, generateRecords(corpusShape{items: 3, properties: 6, claims: 4, seed: 1}))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, int64(9), n)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "[", lines[0])
	assert.Equal(t, "]", lines[10])
	assert.False(t, strings.HasSuffix(lines[9], ","))

	for i, line := range lines[1:10] {
		trimmed, ok := extract.NormalizeLine(line)
		require.True(t, ok)
		rec, err := extract.ParseRecord([]byte(trimmed))
		require.NoError(t, err, "line %d", i+1)
		assert.NotEmpty(t, rec.Entity.Label)
	}
}

func TestGenerateThenLoad(t *testing.T) {
	corpus := filepath.Join(t.TempDir(), "synthetic.json")
	_, err := runApp(t, "--log-level", "error", "generate", "--out", corpus, "--items", "20", "--properties", "6", "--claims", "3")
	require.NoError(t, err)

	out, err := runApp(t, "count-lines", corpus)
	require.NoError(t, err)
	assert.Equal(t, "28\n", out)

	_, err = runApp(t, "--log-level", "error", "load", "--in-memory", "--corpus", corpus, "--concurrency", "2", "--bucket", "5")
	require.NoError(t, err)
}

func TestGenerateCommand_Validation(t *testing.T) {
	_, err := runApp(t, "generate", "--items", "0")
	assert.Error(t, err)
}
