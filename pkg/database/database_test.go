package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/pkg/config"
)

func TestNew_EnablesForeignKeys(t *testing.T) {
	t.Parallel()

	db, err := New(config.NewForTest())
	require.NoError(t, err)
	defer db.Close()

	var enabled int
	err = db.NewRaw("PRAGMA foreign_keys").Scan(context.Background(), &enabled)
	require.NoError(t, err)
	assert.Equal(t, 1, enabled)

	_, err = db.Exec(`CREATE TABLE parents (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE children (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parents (id) ON DELETE CASCADE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO parents (id) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO children (parent_id) VALUES (1)`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM parents WHERE id = 1`)
	require.NoError(t, err)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM children`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNew_FileDatabaseUsesWAL(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}
