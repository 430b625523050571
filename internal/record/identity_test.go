package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDocID_Priority(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		want  string
	}{
		{
			name: "header wins over metadata and body",
			block: Block{
				HeaderLine:       "VOL/EFTA00000001.pdf",
				MetadataFilename: "EFTA00000002.pdf",
				Body:             "see EFTA00000003",
			},
			want: "EFTA00000001",
		},
		{
			name:  "metadata filename wins over body",
			block: Block{HeaderLine: "X", MetadataFilename: "EFTA00000002.pdf", Body: "EFTA00000003"},
			want:  "EFTA00000002",
		},
		{
			name:  "body used last",
			block: Block{HeaderLine: "X", Body: "Bates EFTA00001234 page 1"},
			want:  "EFTA00001234",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDocID(tt.block, "/data/file.txt"))
		})
	}
}

func TestResolveDocID_RequiresExactlyEightDigits(t *testing.T) {
	// Given: identifiers with the wrong digit count or glued to word chars
	b := Block{HeaderLine: "EFTA1234567 EFTA123456789 xEFTA00000001", Body: "none"}

	// When: resolving
	id := ResolveDocID(b, "f.txt")

	// Then: the fallback is used
	assert.True(t, strings.HasPrefix(id, "doc_"), id)
}

func TestResolveDocID_FallbackIsDeterministic(t *testing.T) {
	b := Block{HeaderLine: "Y", Body: "no identifier here"}

	first := ResolveDocID(b, "/in/a.txt")
	second := ResolveDocID(b, "/in/a.txt")

	assert.Equal(t, first, second)
	assert.Equal(t, "doc_"+SHA256Hex("Y|/in/a.txt"), first)
	assert.Len(t, first, len("doc_")+64)
}

func TestResolveDocID_FallbackDependsOnHeaderAndPath(t *testing.T) {
	base := ResolveDocID(Block{HeaderLine: "Y"}, "/in/a.txt")

	assert.NotEqual(t, base, ResolveDocID(Block{HeaderLine: "Z"}, "/in/a.txt"))
	assert.NotEqual(t, base, ResolveDocID(Block{HeaderLine: "Y"}, "/in/b.txt"))
}

func TestResolveDocID_FallbackIgnoresBodyAndMetadata(t *testing.T) {
	a := ResolveDocID(Block{HeaderLine: "Y", Body: "one", MetadataSource: "s1"}, "/f")
	b := ResolveDocID(Block{HeaderLine: "Y", Body: "two", MetadataSource: "s2"}, "/f")

	assert.Equal(t, a, b)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(""))
}
