package keyring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// memSettings is an in-memory Settings double.
type memSettings struct {
	values map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (m *memSettings) GetSetting(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) PutSetting(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memSettings) DeleteSetting(key string) error {
	delete(m.values, key)
	return nil
}

func TestUserKeyGeneratedOnceAndPersisted(t *testing.T) {
	settings := newMemSettings()

	k := New(settings)
	first, err := k.UserKey()
	require.NoError(t, err)
	require.Len(t, first, 32)

	again, err := k.UserKey()
	require.NoError(t, err)
	require.Equal(t, first, again)

	// a second keyring over the same settings sees the same key
	other := New(settings)
	reloaded, err := other.UserKey()
	require.NoError(t, err)
	require.Equal(t, first, reloaded)
}

func TestGroupKeysAreIndependent(t *testing.T) {
	k := New(newMemSettings())

	user, err := k.UserKey()
	require.NoError(t, err)
	g1, err := k.GroupKey("g1")
	require.NoError(t, err)
	g2, err := k.GroupKey("g2")
	require.NoError(t, err)

	require.NotEqual(t, user, g1)
	require.NotEqual(t, g1, g2)

	_, err = k.GroupKey("")
	require.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	source := New(newMemSettings())
	exported, err := source.Export()
	require.NoError(t, err)

	target := New(newMemSettings())
	require.NoError(t, target.Import(exported))

	sourceKey, err := source.UserKey()
	require.NoError(t, err)
	targetKey, err := target.UserKey()
	require.NoError(t, err)
	require.Equal(t, sourceKey, targetKey)
}

func TestImportRecoveryPhraseIsDeterministic(t *testing.T) {
	a := New(newMemSettings())
	b := New(newMemSettings())

	require.NoError(t, a.Import("correct horse battery staple"))
	require.NoError(t, b.Import("correct horse battery staple"))

	keyA, err := a.UserKey()
	require.NoError(t, err)
	keyB, err := b.UserKey()
	require.NoError(t, err)
	require.Equal(t, keyA, keyB)
}

func TestImportRejectsEmpty(t *testing.T) {
	k := New(newMemSettings())
	require.Error(t, k.Import(""))
}

func TestResetRegeneratesKey(t *testing.T) {
	k := New(newMemSettings())

	before, err := k.UserKey()
	require.NoError(t, err)
	require.NoError(t, k.Reset())
	after, err := k.UserKey()
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestGroupExportImport(t *testing.T) {
	source := New(newMemSettings())
	exported, err := source.ExportGroup("room")
	require.NoError(t, err)

	target := New(newMemSettings())
	require.NoError(t, target.ImportGroup("room", exported))

	sourceKey, err := source.GroupKey("room")
	require.NoError(t, err)
	targetKey, err := target.GroupKey("room")
	require.NoError(t, err)
	require.Equal(t, sourceKey, targetKey)
}
