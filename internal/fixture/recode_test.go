package fixture

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	err := filepath.Walk(dir, func(p string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		names = append(names, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(names)
	return names
}

func TestLookupCharset(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"UTF-8", "utf8", "ISO-8859-1"} {
		_, err := LookupCharset(name)
		assert.NoError(t, err, name)
	}
	_, err := LookupCharset("no-such-charset")
	assert.Error(t, err)
}

func TestRecode_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs := osfs.New(dir)
	b := NewBuilder(fs, filepath.Join(dir, TracksDir), sample)
	require.NoError(t, b.CreateAll([]string{
		"Joe Bloggs/First Album/01:F\u00ccrst track.ogg",
		"Joe Bloggs/First Album/03:ThI\u0301rd track.ogg",
		"misc/plain.ogg",
	}))

	utf8, err := LookupCharset("UTF-8")
	require.NoError(t, err)
	latin1, err := LookupCharset("ISO-8859-1")
	require.NoError(t, err)

	n, err := Recode(fs, TracksDir, utf8, latin1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, listNames(t, filepath.Join(dir, TracksDir)), "Joe Bloggs/First Album/01:F\xccrst track.ogg")
	assert.Contains(t, listNames(t, filepath.Join(dir, TracksDir)), "Joe Bloggs/First Album/03:Th\xcdrd track.ogg")

	n, err = Recode(fs, TracksDir, latin1, utf8)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names := listNames(t, filepath.Join(dir, TracksDir))
	assert.Contains(t, names, "Joe Bloggs/First Album/01:F\u00ccrst track.ogg")
	// the decomposed name comes back composed
	assert.Contains(t, names, "Joe Bloggs/First Album/03:Th\u00cdrd track.ogg")
	assert.Contains(t, names, "misc/plain.ogg")
}
