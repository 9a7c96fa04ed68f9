package model

type Embedding struct {
	Vector     []float32 `json:"embedding"`
	TokenCount int       `json:"token_count"`
}

type TokenUsage struct {
	TeamID   string `json:"team_id"`
	SourceID string `json:"source_id"`
	JobID    string `json:"job_id"`
	Tokens   int64  `json:"tokens"`
	Ctime    int64  `json:"ctime"`
}
