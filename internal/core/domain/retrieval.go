package domain

// SearchResult is produced per query and never persisted.
type SearchResult struct {
	Chunk         ChunkEmbedding `json:"chunk"`
	Similarity    float64        `json:"similarity"`
	DocumentTitle string         `json:"document_title"`
	RerankScore   *float64       `json:"rerank_score,omitempty"`
}

// SearchConfig controls the two-stage retrieval pipeline.
type SearchConfig struct {
	TopK             int     `json:"top_k"`
	MinSimilarity    float64 `json:"min_similarity"`
	EnableReranking  bool    `json:"enable_reranking"`
	RerankTopN       int     `json:"rerank_top_n"`
	MinRerankScore   float64 `json:"min_rerank_score"`
	UseHybridScoring bool    `json:"use_hybrid_scoring"`
	SimilarityWeight float64 `json:"similarity_weight"`
	RerankWeight     float64 `json:"rerank_weight"`
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		TopK:             5,
		MinSimilarity:    0,
		EnableReranking:  false,
		RerankTopN:       10,
		MinRerankScore:   0,
		UseHybridScoring: false,
		SimilarityWeight: 0.5,
		RerankWeight:     0.5,
	}
}

// Normalized fills zero-valued limits with documented defaults.
func (c SearchConfig) Normalized() SearchConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = out.TopK
	}
	if out.SimilarityWeight == 0 && out.RerankWeight == 0 {
		out.SimilarityWeight = 0.5
		out.RerankWeight = 0.5
	}
	return out
}
