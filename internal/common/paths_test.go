package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	// capital I with acute, composed and as I + U+0301
	composedI   = "Th\u00cdrd"
	decomposedI = "ThI\u0301rd"
)

func TestNFC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii", "Second track", "Second track"},
		{"already_composed", composedI, composedI},
		{"decomposed_acute", decomposedI, composedI},
		{"decomposed_grave", "FI\u0300rst", "F\u00ccrst"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NFC(tt.input), "NFC(%q)", tt.input)
		})
	}
}

func TestNFCAll(t *testing.T) {
	t.Parallel()

	in := []string{decomposedI, "plain"}
	out := NFCAll(in)
	assert.Equal(t, []string{composedI, "plain"}, out)
	assert.Equal(t, decomposedI, in[0], "input must not be modified")
}

func TestSameName(t *testing.T) {
	t.Parallel()

	assert.True(t, SameName(composedI, decomposedI))
	assert.True(t, SameName("a", "a"))
	assert.False(t, SameName("Third", composedI))
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"root", "/", ""},
		{"dot", ".", ""},
		{"simple", "misc", "misc"},
		{"leading_slash", "/misc/blah.ogg", "misc/blah.ogg"},
		{"trailing_slash", "Joe Bloggs/", "Joe Bloggs"},
		{"double_slash", "Joe Bloggs//First Album", "Joe Bloggs/First Album"},
		{"dot_middle", "a/./b", "a/b"},
		{"dotdot_middle", "a/../b", "b"},
		{"keeps_decomposed", "x/" + decomposedI, "x/" + decomposedI},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizePath(tt.input), "NormalizePath(%q)", tt.input)
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"root", "/", nil},
		{"single", "misc", []string{"misc"}},
		{"track", "Joe Bloggs/First Album/02:Second track.ogg",
			[]string{"Joe Bloggs", "First Album", "02:Second track.ogg"}},
		{"colon_and_spaces", "/Various/Greatest Hits/", []string{"Various", "Greatest Hits"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SplitPath(tt.input), "SplitPath(%q)", tt.input)
		})
	}
}

func TestJoinParentBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", JoinPath())
	assert.Equal(t, "a/b", JoinPath("a", "", "b"))
	assert.Equal(t, "Fred Smith/Boring", ParentPath("Fred Smith/Boring/01:Dull.ogg"))
	assert.Equal(t, "", ParentPath("top.ogg"))
	assert.Equal(t, "01:Dull.ogg", BaseName("/Fred Smith/Boring/01:Dull.ogg"))
	assert.Equal(t, "", BaseName("/"))

	for _, p := range []string{"a/b", "Joe Bloggs/First Album/01.ogg"} {
		assert.Equal(t, p, JoinPath(ParentPath(p), BaseName(p)))
		assert.Equal(t, p, JoinPath(SplitPath(p)...))
	}
}
