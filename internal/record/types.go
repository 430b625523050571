package record

// Block is one header-delimited record extracted from a source file.
type Block struct {
	// HeaderLine is the label captured from the "--- SOURCE: <label> ---" marker.
	HeaderLine       string
	MetadataSource   string
	MetadataFilename string
	Body             string
}

// DocType is the coarse classification stored in document metadata.
type DocType string

const (
	DocTypeEmail    DocType = "email_like"
	DocTypeDocument DocType = "document_like"
)

// ChunkModeParagraph is the only chunking mode recordex implements.
const ChunkModeParagraph = "paragraph"

// Metadata is serialized to docs.meta_json.
type Metadata struct {
	DocID            string  `json:"doc_id"`
	Type             DocType `json:"type"`
	SourceTxtFile    string  `json:"source_txt_file"`
	RecordSource     string  `json:"record_source"`
	MetadataSource   string  `json:"metadata_source"`
	MetadataFilename string  `json:"metadata_filename"`
	TextSHA256       string  `json:"text_sha256"`
	Chars            int     `json:"chars"`
	ChunkMode        string  `json:"chunk_mode"`
	ChunkTargetSize  int     `json:"chunk_target_size"`
}
