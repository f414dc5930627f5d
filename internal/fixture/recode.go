package fixture

import (
	"fmt"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	logrus "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"dtest/internal/common"
)

// Charset converts file names between a named byte encoding and UTF-8.
type Charset struct {
	Name string
	enc  encoding.Encoding // nil for UTF-8
}

// LookupCharset resolves an IANA charset name such as "UTF-8" or
// "ISO-8859-1".
func LookupCharset(name string) (Charset, error) {
	if isUTF8(name) {
		return Charset{Name: name}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return Charset{}, fmt.Errorf("unknown charset %q", name)
	}
	return Charset{Name: name, enc: enc}, nil
}

func isUTF8(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	return n == "utf8"
}

// Decode converts a raw name in this charset to UTF-8.
func (c Charset) Decode(raw string) (string, error) {
	if c.enc == nil {
		return raw, nil
	}
	return c.enc.NewDecoder().String(raw)
}

// Encode converts a UTF-8 name to this charset.
func (c Charset) Encode(s string) (string, error) {
	if c.enc == nil {
		return s, nil
	}
	return c.enc.NewEncoder().String(s)
}

// Recode renames every entry below dir (inclusive) from charset from to
// charset to, normalizing to NFC on the way. It returns the number of names
// changed.
func Recode(fs billy.Filesystem, dir string, from, to Charset) (int, error) {
	return recode(fs, dir, from, to)
}

func recode(fs billy.Filesystem, name string, from, to Charset) (int, error) {
	recoded := 0
	parent, base := path.Split(name)

	decoded, err := from.Decode(base)
	if err != nil {
		return 0, fmt.Errorf("decode %q as %s: %v: %w", base, from.Name, err, common.ErrFilesystem)
	}
	encoded, err := to.Encode(common.NFC(decoded))
	if err != nil {
		return 0, fmt.Errorf("encode %q as %s: %v: %w", decoded, to.Name, err, common.ErrFilesystem)
	}
	if encoded != base {
		target := path.Join(parent, encoded)
		logrus.WithFields(logrus.Fields{"from": fmt.Sprintf("%q", base), "to": fmt.Sprintf("%q", encoded)}).Debug("recoding name")
		if err := fs.Rename(name, target); err != nil {
			return 0, fmt.Errorf("rename %q: %v: %w", name, err, common.ErrFilesystem)
		}
		name = target
		recoded++
	}

	info, err := fs.Lstat(name)
	if err != nil {
		return recoded, fmt.Errorf("stat %q: %v: %w", name, err, common.ErrFilesystem)
	}
	if !info.IsDir() {
		return recoded, nil
	}

	entries, err := fs.ReadDir(name)
	if err != nil {
		return recoded, fmt.Errorf("read directory %q: %v: %w", name, err, common.ErrFilesystem)
	}
	for _, e := range entries {
		n, err := recode(fs, path.Join(name, e.Name()), from, to)
		recoded += n
		if err != nil {
			return recoded, err
		}
	}
	return recoded, nil
}
