package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authors.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAuthorsSimpleHeader(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "name,user_id\nA,idA\nB,idB\nC,\nD,idD\n")

	authors, err := LoadAuthors(path)
	require.NoError(t, err)
	require.Equal(t, []Author{
		{Name: "A", UserID: "idA"},
		{Name: "B", UserID: "idB"},
		{Name: "D", UserID: "idD"},
	}, authors)
}

func TestLoadAuthorsExportHeader(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "ID,Nama,GoogleScholarID,Status\n"+
		"1,Alpha,abc123,Aktif\n"+
		"2,Beta,,Purnakarya\n"+
		"3,Gamma,def456,Aktif\n"+
		"4,Short\n")

	authors, err := LoadAuthors(path)
	require.NoError(t, err)
	require.Equal(t, []Author{
		{Name: "Alpha", UserID: "abc123"},
		{Name: "Gamma", UserID: "def456"},
	}, authors)
}

func TestLoadAuthorsUnknownHeader(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "foo,bar\nx,y\n")

	_, err := LoadAuthors(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no user id column")
}

func TestLoadAuthorsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadAuthors(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestLoadAuthorsEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "")

	_, err := LoadAuthors(path)
	require.Error(t, err)
}

func TestLoadAuthorsHeaderOnly(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "name,user_id\n")

	authors, err := LoadAuthors(path)
	require.NoError(t, err)
	require.Empty(t, authors)
}
