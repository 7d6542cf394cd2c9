package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"marketchain/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("key"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(common.Hash{}, 0)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieCopyIsolatesMutations(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("listing"))
	require.NoError(t, tr.Update(key, []byte("active")))
	before := tr.Hash()

	staged := tr.Copy()
	require.NoError(t, staged.Delete(key))
	require.NoError(t, staged.Update(crypto.Keccak256([]byte("other")), []byte("x")))

	require.Equal(t, before, tr.Hash(), "original trie must not observe staged writes")
	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("active"), got)

	missing, err := staged.Get(key)
	require.NoError(t, err)
	require.Nil(t, missing)
	require.NotEqual(t, before, staged.Hash())
}
