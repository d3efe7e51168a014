package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damione1/poker-rooms/internal/checkpoint"
)

func stringPtr(s string) *string {
	return &s
}

// runStoreContract exercises the Store behavior both implementations must
// share.
func runStoreContract(t *testing.T, store checkpoint.Store) {
	t.Run("put and load sessions", func(t *testing.T) {
		require.NoError(t, store.PutSession("r1", "c1", checkpoint.SessionRecord{
			UserID: "u1", Name: "Alice", Vote: stringPtr("5"),
		}))
		require.NoError(t, store.PutSession("r1", "c2", checkpoint.SessionRecord{
			UserID: "u2", Name: "Bob",
		}))
		require.NoError(t, store.PutSession("r2", "c3", checkpoint.SessionRecord{
			UserID: "u3",
		}))

		records, err := store.SessionsFor("r1")
		require.NoError(t, err)
		require.Len(t, records, 2)

		require.NotNil(t, records["c1"].Vote)
		assert.Equal(t, "5", *records["c1"].Vote)
		assert.Equal(t, "Alice", records["c1"].Name)
		assert.Nil(t, records["c2"].Vote)
	})

	t.Run("put overwrites the previous record", func(t *testing.T) {
		require.NoError(t, store.PutSession("r1", "c1", checkpoint.SessionRecord{
			UserID: "u1", Name: "Alice", Vote: nil,
		}))

		records, err := store.SessionsFor("r1")
		require.NoError(t, err)
		assert.Nil(t, records["c1"].Vote)
	})

	t.Run("delete session", func(t *testing.T) {
		require.NoError(t, store.DeleteSession("r1", "c2"))

		records, err := store.SessionsFor("r1")
		require.NoError(t, err)
		_, ok := records["c2"]
		assert.False(t, ok)
	})

	t.Run("revealed defaults to false", func(t *testing.T) {
		revealed, err := store.Revealed("r1")
		require.NoError(t, err)
		assert.False(t, revealed)
	})

	t.Run("revealed round trip", func(t *testing.T) {
		require.NoError(t, store.PutRevealed("r1", true))
		revealed, err := store.Revealed("r1")
		require.NoError(t, err)
		assert.True(t, revealed)

		require.NoError(t, store.PutRevealed("r1", false))
		revealed, err = store.Revealed("r1")
		require.NoError(t, err)
		assert.False(t, revealed)
	})

	t.Run("delete room drops everything but leaves other rooms", func(t *testing.T) {
		require.NoError(t, store.PutRevealed("r1", true))
		require.NoError(t, store.DeleteRoom("r1"))

		records, err := store.SessionsFor("r1")
		require.NoError(t, err)
		assert.Empty(t, records)

		revealed, err := store.Revealed("r1")
		require.NoError(t, err)
		assert.False(t, revealed)

		records, err = store.SessionsFor("r2")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestMemStore(t *testing.T) {
	runStoreContract(t, checkpoint.NewMemStore())
}

func TestSQLStore(t *testing.T) {
	store, err := checkpoint.OpenSQLStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}
