package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/piet/workbench/store"
)

func TestDB_OpenModes(t *testing.T) {
	t.Run("in-memory", func(t *testing.T) {
		db, err := OpenInMemoryDB(true)
		require.NoError(t, err)
		require.NotNil(t, db)

		runSampleInsertSelectTest(t, db)
		assert.NoError(t, db.Close())
	})

	t.Run("file-based DB", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")

		db, err := OpenFileDB(dir, DefaultFileName, true)
		require.NoError(t, err)
		require.NotNil(t, db)
		assert.FileExists(t, filepath.Join(dir, DefaultFileName))

		runSampleInsertSelectTest(t, db)
		assert.NoError(t, db.Close())
	})

	t.Run("reopen keeps rows", func(t *testing.T) {
		dir := t.TempDir()
		db, err := OpenFileDB(dir, DefaultFileName, true)
		require.NoError(t, err)
		require.NoError(t, db.Client().Create(&store.ContractEntry{Name: "token", ABI: "[]"}).Error)
		require.NoError(t, db.Close())

		db, err = OpenFileDB(dir, DefaultFileName, false)
		require.NoError(t, err)
		defer db.Close()
		var count int64
		require.NoError(t, db.Client().Model(&store.ContractEntry{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("without migration the table is missing", func(t *testing.T) {
		db, err := OpenInMemoryDB(false)
		require.NoError(t, err)
		defer db.Close()
		err = db.Client().Create(&store.ContractEntry{Name: "x", ABI: "[]"}).Error
		assert.Error(t, err)
	})
}

func TestDB_UniqueName(t *testing.T) {
	db, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Client().Create(&store.ContractEntry{Name: "token", ABI: "[]"}).Error)
	assert.Error(t, db.Client().Create(&store.ContractEntry{Name: "token", ABI: "[]"}).Error)
}

func runSampleInsertSelectTest(t *testing.T, db *DB) {
	entry := store.ContractEntry{
		Name:    "counter",
		Network: "1337",
		Address: "0x0000000000000000000000000000000000000c0c",
		ABI:     `[{"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`,
	}

	err := db.Client().Create(&entry).Error
	require.NoError(t, err)

	var result store.ContractEntry
	err = db.Client().Where("name = ?", "counter").First(&result).Error
	require.NoError(t, err)
	assert.Equal(t, entry.Address, result.Address)
	assert.Equal(t, entry.ABI, result.ABI)
}
