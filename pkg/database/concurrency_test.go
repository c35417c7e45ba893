package database

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/uptrace/bun"
)

// newTestConfig uses a file database so lock contention is real, with the
// busy retries turned off.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "taletunes.db")
	cfg.DatabaseMaxRetries = 0
	cfg.DatabaseBusyTimeout = time.Millisecond
	return cfg
}

func newContendedDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE UNIQUE INDEX ux_members ON members (room_id, user_id)`)
	require.NoError(t, err)
	return db
}

func TestConcurrentJoins(t *testing.T) {
	t.Parallel()

	db := newContendedDB(t)

	const users = 20
	const attemptsPerUser = 5

	var wg sync.WaitGroup
	var joined, duplicates, other atomic.Int32

	// Every user races to join the same room several times. Exactly one
	// attempt per user lands and the rest hit the unique index, never a lock.
	for u := 1; u <= users; u++ {
		for a := 0; a < attemptsPerUser; a++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				_, err := db.Exec("INSERT INTO members (room_id, user_id) VALUES (1, ?)", userID)
				switch {
				case err == nil:
					joined.Add(1)
				case strings.Contains(err.Error(), "UNIQUE constraint failed"):
					duplicates.Add(1)
				default:
					other.Add(1)
				}
			}(u)
		}
	}
	wg.Wait()

	assert.Equal(t, int32(0), other.Load())
	assert.Equal(t, int32(users), joined.Load())
	assert.Equal(t, int32(users*(attemptsPerUser-1)), duplicates.Load())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM members").Scan(&count))
	assert.Equal(t, users, count)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	t.Parallel()

	db := newContendedDB(t)

	const workers = 8
	const opsPerWorker = 50

	var wg sync.WaitGroup
	var writeErrors, readErrors atomic.Int32

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				if worker%2 == 0 {
					_, err := db.Exec("INSERT INTO members (room_id, user_id) VALUES (?, ?)", worker, i)
					if err != nil {
						writeErrors.Add(1)
					}
					continue
				}
				var count int
				if err := db.QueryRow("SELECT COUNT(*) FROM members WHERE room_id = ?", worker-1).Scan(&count); err != nil {
					readErrors.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int32(0), writeErrors.Load())
	assert.Equal(t, int32(0), readErrors.Load())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM members").Scan(&count))
	assert.Equal(t, workers/2*opsPerWorker, count)
}
