package types

// SummarizedToolCategory is one group of related tools as produced by the
// LLM categorization step. Categories are cached by toolset content hash and
// reused across grouping passes while the toolset is unchanged.
type SummarizedToolCategory struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Tools   []Tool `json:"tools"`
}
