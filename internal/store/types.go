package store

// Document is one row of the docs table.
type Document struct {
	RunID      string
	DocID      string
	MetaJSON   string
	TextSHA256 string
	TextChars  int
}

// Chunk is one row of the chunks table.
type Chunk struct {
	UID        string
	RunID      string
	ChunkID    string
	OrderIndex int
	DocID      string
	SourceFile string
	Text       string
}

// ChunkResult reports what InsertChunk did.
type ChunkResult struct {
	// ID is the chunk's rowid. Zero when the uid already existed.
	ID int64
	// Inserted is false when the uid already existed and nothing was written.
	Inserted bool
}

// RunStats summarises one run as stored.
type RunStats struct {
	RunID         string  `json:"run_id"`
	Documents     int64   `json:"documents"`
	Chunks        int64   `json:"chunks"`
	FTSEntries    int64   `json:"fts_entries"`
	AvgChunkChars float64 `json:"avg_chunk_chars"`
	DBSizeBytes   int64   `json:"db_size_bytes"`
	DBPath        string  `json:"db_path"`
}

// ChunkHit is one chunk-mode search result.
type ChunkHit struct {
	DocID      string  `json:"doc_id"`
	SourceFile string  `json:"source_file"`
	OrderIndex int     `json:"order_index"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	Marked     bool    `json:"marked"`
}

// DocHit is one document-mode search result.
type DocHit struct {
	DocID      string  `json:"doc_id"`
	SourceFile string  `json:"source_file"`
	BestScore  float64 `json:"best_score"`
	HitChunks  int     `json:"hit_chunks"`
	Marked     bool    `json:"marked"`
}

// DocText is a reassembled document.
type DocText struct {
	DocID      string `json:"doc_id"`
	SourceFile string `json:"source_file"`
	Text       string `json:"text"`
	Marked     bool   `json:"marked"`
	Truncated  bool   `json:"truncated"`
}

// Mark is a user bookmark on a document.
type Mark struct {
	DocID      string `json:"doc_id"`
	SourceFile string `json:"source_file"`
	CreatedAt  string `json:"created_at"`
}
