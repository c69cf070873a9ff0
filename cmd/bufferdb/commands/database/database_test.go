package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	root := t.TempDir()
	_, err := db.Create(root, "acme_telegraf")
	require.NoError(t, err)
	_, err = db.Create(root, "acme_system")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".trash"), 0o755))

	list, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "acme_system", list[0].Name)
	assert.Equal(t, "acme_telegraf", list[1].Name)
	assert.Equal(t, 1, list[0].Segments)

	rows := list.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"NAME", "SEGMENTS", "WAL SIZE"}, list.Headers())
	assert.Equal(t, "acme_system", rows[0][0])
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
