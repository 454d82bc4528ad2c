package treeModel

import "time"

// SearchStep records the decision taken for one node at one level.
type SearchStep struct {
	Level      int     `json:"level"`
	NodeID     string  `json:"node_id"`
	NodeTitle  string  `json:"node_title"`
	Reasoning  string  `json:"reasoning"`
	Selected   bool    `json:"selected"`
	Confidence float64 `json:"confidence"`
	PageRange  string  `json:"page_range"`
}

type SearchResult struct {
	RelevantPages  []int         `json:"relevant_pages"`
	RelevantNodes  []*TreeNode   `json:"relevant_nodes"`
	ReasoningTrace []SearchStep  `json:"reasoning_trace"`
	Confidence     float64       `json:"confidence"`
	LLMCalls       int           `json:"llm_calls"`
	Elapsed        time.Duration `json:"elapsed"`
}

func (r *SearchResult) SelectedSteps() int {
	n := 0
	for _, s := range r.ReasoningTrace {
		if s.Selected {
			n++
		}
	}
	return n
}
