package trimapi

import (
	"math"
	"sort"
)

// Upload is one file attached to a multipart request.
type Upload struct {
	Name    string
	Content []byte
}

type FileAnalysis struct {
	FileName      string `json:"fileName"`
	FileSize      int64  `json:"fileSize"`
	Language      string `json:"language"`
	TokenEstimate int    `json:"tokenEstimate"`
}

type SummaryLevel struct {
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`
}

type HuffmanStats struct {
	CompressedBits int     `json:"compressedBits"`
	Ratio          float64 `json:"compressionRatio"`
	SpaceSavedPct  float64 `json:"spaceSavedPct"`
}

type MinifyStats struct {
	Code              string  `json:"code"`
	CommentsRemoved   int     `json:"commentsRemoved"`
	BlankLinesRemoved int     `json:"blankLinesRemoved"`
	ReductionPct      float64 `json:"reductionPct"`
	Tokens            int     `json:"tokens"`
}

type Chunk struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Tokens    int    `json:"tokens"`
	Signature string `json:"signature,omitempty"`
}

type HashTable struct {
	DecodeMap    map[string]string `json:"decodeMap"`
	EntriesCount int               `json:"entriesCount"`
}

// CompressionReport is the full per-file result of the compression pipeline.
// Immutable once received; Finalize is the only sanctioned touch-up.
type CompressionReport struct {
	Filename      string `json:"filename"`
	Language      string `json:"language"`
	FileSize      int64  `json:"fileSize"`
	OriginalLines int    `json:"originalLines"`

	OriginalTokens int          `json:"originalTokens"`
	MinifiedTokens int          `json:"minifiedTokens"`
	Huffman        HuffmanStats `json:"huffman"`
	Minification   MinifyStats  `json:"minification"`

	Chunks      []Chunk `json:"chunks"`
	TotalChunks int     `json:"totalChunks"`

	SummaryLevels map[string]SummaryLevel `json:"summaryLevels"`
	HashTable     HashTable               `json:"hashTable"`

	BestLevel           string  `json:"bestLevel"`
	BestTokens          int     `json:"bestTokens"`
	OverallReductionPct float64 `json:"overallReductionPct"`

	DecodePreamble string `json:"decodePreamble"`
}

// levelPriority breaks token-count ties: a level earlier in this list wins
// against any later level with the same count.
var levelPriority = []string{"skeleton", "architecture", "minified", "compressed"}

// Finalize recomputes the best-level fields from the summary levels. The
// service sends its own choice, but the selection rule is cheap to apply and
// the report the rest of the session consumes must satisfy it regardless of
// which service version answered.
func (r *CompressionReport) Finalize() {
	best, tokens, ok := SelectBestLevel(r.SummaryLevels)
	if !ok {
		return
	}
	r.BestLevel = best
	r.BestTokens = tokens
	if r.OriginalTokens > 0 {
		pct := (1 - float64(tokens)/float64(r.OriginalTokens)) * 100
		r.OverallReductionPct = math.Round(pct*10) / 10
	}
}

// SelectBestLevel picks the representation with the minimum token count.
// Ties go to the fixed priority order skeleton, architecture, minified,
// compressed; level names outside that list still compete on token count
// and break ties among themselves lexicographically.
func SelectBestLevel(levels map[string]SummaryLevel) (string, int, bool) {
	known := make(map[string]bool, len(levelPriority))
	names := make([]string, 0, len(levels))
	for _, name := range levelPriority {
		if _, ok := levels[name]; ok {
			names = append(names, name)
			known[name] = true
		}
	}
	extras := make([]string, 0, len(levels))
	for name := range levels {
		if !known[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	names = append(names, extras...)

	best := ""
	bestTokens := 0
	for _, name := range names {
		if best == "" || levels[name].Tokens < bestTokens {
			best = name
			bestTokens = levels[name].Tokens
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestTokens, true
}

type EncodedFile struct {
	Filename         string            `json:"filename"`
	Language         string            `json:"language"`
	OriginalSize     int64             `json:"originalSize"`
	EncodedSize      int64             `json:"encodedSize"`
	PatternCount     int               `json:"patternCount"`
	CompressionRatio float64           `json:"compressionRatio"`
	PercentSaved     float64           `json:"percentSaved"`
	DecodeTable      map[string]string `json:"decodeTable"`
	EncodedBody      string            `json:"encodedBody"`
}

// LosslessBundle is the self-describing container enabling byte-exact
// reconstruction of the original files.
type LosslessBundle struct {
	Format      string        `json:"format"`
	GeneratedAt string        `json:"generatedAt"`
	Files       []EncodedFile `json:"files"`
}

type RecoveredFile struct {
	Filename      string `json:"filename"`
	Language      string `json:"language"`
	RecoveredSize int64  `json:"recovered_size"`
	// Match asserts byte-length equality between original and recovered
	// content. A false value is a data-integrity signal and must be passed
	// through verbatim.
	Match   bool   `json:"match"`
	Content string `json:"content"`
}

type DecodeResult struct {
	Files      []RecoveredFile `json:"files"`
	TotalFiles int             `json:"total_files"`
}
