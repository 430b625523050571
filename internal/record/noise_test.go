package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripNoise_Steps(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"page markers become newlines", "a--- PAGE 12 ---b", "a\nb"},
		{"metadata echoes removed", "keep\nmetadata_source: x\nMETADATA_FILENAME: y\nalso", "keep\n\nalso"},
		{"plugin notice removed", "top\nCouldn't load plugin.  \nbottom", "top\n\nbottom"},
		{"plugin notice only as whole line", "Couldn't load plugin. really", "Couldn't load plugin. really"},
		{"plugin notice takes trailing blank lines", "top\nCouldn't load plugin.\n  \nbottom", "top\n\nbottom"},
		{"blank runs collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"trimmed", "  \n body \n\n", "body"},
		{
			"legal disclaimer removed",
			"Hi.\nThis communication contains information that is privileged under applicable law. Bye.",
			"Hi.\nBye.",
		},
		{
			"copyright notice removed",
			"Story.\nPlease Note: reprints require consent. Copyright -All Rights Reserved\nEnd.",
			"Story.\nEnd.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripNoise(tt.in))
		})
	}
}

func TestStripNoise_BoilerplateSpanIsBounded(t *testing.T) {
	// Given: a disclaimer opener whose terminator is too far away
	filler := strings.Repeat("x", 1000)
	in := "This communication contains information " + filler + " applicable law. tail"

	// When: stripping
	got := StripNoise(in)

	// Then: nothing is removed
	assert.Equal(t, in, got)
}

func TestStripNoise_CopyrightSpanAllowsFourteenHundredRunes(t *testing.T) {
	tests := []struct {
		name    string
		filler  int
		removed bool
	}{
		{"short span", 10, true},
		{"past a thousand", 1200, true},
		{"at the cap", 1398, true},
		{"beyond the cap", 1450, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a notice whose terminator sits filler+2 runes after the opener
			notice := "Please note " + strings.Repeat("é", tt.filler) + " Copyright -All Rights Reserved\n"
			in := "Story.\n" + notice + "End."

			// When: stripping
			got := StripNoise(in)

			// Then: the notice goes only when the terminator is within reach
			if tt.removed {
				assert.Equal(t, "Story.\nEnd.", got)
			} else {
				assert.Equal(t, in, got)
			}
		})
	}
}

func TestStripNoise_CopyrightSpanPicksNearestTerminator(t *testing.T) {
	in := "a please note x copyright -all rights reserved b copyright -all rights reserved c"

	assert.Equal(t, "a b copyright -all rights reserved c", StripNoise(in))
}

func TestStripNoise_CopyrightSpanRetriesLaterOpener(t *testing.T) {
	// Given: an opener with no terminator in reach followed by one that has
	far := "please note " + strings.Repeat("y", 1500)
	in := far + " please note z copyright -all rights reserved end"

	// Then: only the second notice is cut
	assert.Equal(t, far+" end", StripNoise(in))
}

func TestStripNoise_DropsInvalidUTF8(t *testing.T) {
	got := StripNoise("ab\xff\xfecd")

	assert.Equal(t, "abcd", got)
}

func TestStripNoise_Deterministic(t *testing.T) {
	in := "--- PAGE 1 ---\nFrom: a\n\n\n\nSubject: b\nMETADATA_SOURCE: z\n"

	assert.Equal(t, StripNoise(in), StripNoise(in))
}

func TestStripNoise_Idempotent(t *testing.T) {
	in := "x\n\n\n--- PAGE 3 ---\ny\nCouldn't load plugin.\n\n\n\nz"

	once := StripNoise(in)

	assert.Equal(t, once, StripNoise(once))
}

func TestCleaner_NFKC(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI and full-width digits
	in := "ﬁle １２"

	assert.Equal(t, in, Cleaner{}.Clean(in))
	assert.Equal(t, "file 12", Cleaner{NFKC: true}.Clean(in))
}

func TestSanitize_KeepsValidText(t *testing.T) {
	assert.Equal(t, "héllo wörld", Sanitize("héllo wörld"))
}
