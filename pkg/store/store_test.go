package store

import (
	"path/filepath"
	"testing"

	"github.com/bnagy/bm2-core/pkg/crashparse"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "results.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertTemplateAndSuccess(t *testing.T) {
	s := openTestStore(t)

	templateID, err := s.InsertTemplate([]byte("\x00\x01"))
	require.NoError(t, err)
	require.NotZero(t, templateID)

	resultID, err := s.InsertSuccess(templateID, "stream-0")
	require.NoError(t, err)
	require.NotZero(t, resultID)
}

func TestInsertCrashScenarioS2(t *testing.T) {
	s := openTestStore(t)

	templateID, err := s.InsertTemplate([]byte("\x00\x01"))
	require.NoError(t, err)

	debugText := "EXCEPTION_TYPE:X\nMAJOR_HASH:a\nMINOR_HASH:b\n"
	parsed := crashparse.Parse(debugText)

	crashID, err := s.InsertCrash(templateID, "stream-0", []byte("\x00\x01"), debugText, parsed)
	require.NoError(t, err)
	require.NotZero(t, crashID)

	var hash, excType string
	err = s.db.QueryRow(
		`SELECT hash_strings.value, exception_types.value
		   FROM crashes
		   JOIN hash_strings ON hash_strings.id = crashes.hash_string_id
		   JOIN exception_types ON exception_types.id = crashes.exception_type_id
		  WHERE crashes.id = ?`, crashID,
	).Scan(&hash, &excType)
	require.NoError(t, err)
	require.Equal(t, "a.b", hash)
	require.Equal(t, "X", excType)

	require.FileExists(t, s.crashFilePath(crashID))
	require.FileExists(t, s.crashDataPath(crashID))
}

func TestModuleDedup(t *testing.T) {
	s := openTestStore(t)
	id1, err := idForModule(s.db, "ntdll.dll", "0xabc", "1000", "ts", "v1")
	require.NoError(t, err)
	id2, err := idForModule(s.db, "ntdll.dll", "0xabc", "1000", "ts", "v1")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}
