package chunk

// DefaultTargetSize is the paragraph chunker's target in characters.
const DefaultTargetSize = 2000

// paragraphSeparator joins merged paragraphs inside one chunk.
const paragraphSeparator = "\n\n"

// Chunker splits clean document text into indexable pieces.
type Chunker interface {
	// Chunk returns the pieces of text in reading order. It never returns
	// an empty slice.
	Chunk(text string) []string

	// TargetSize reports the configured size target in characters.
	TargetSize() int
}
