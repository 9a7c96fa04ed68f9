package model

// FileData is what a source adapter hands to the pipeline for one file.
type FileData struct {
	Path             string
	Name             string
	Content          string
	ContentType      string
	Metadata         map[string]interface{}
	InternalMetadata map[string]interface{}
}

type FileRecord struct {
	ID               string                 `json:"id"`
	SourceID         string                 `json:"source_id"`
	ProjectID        string                 `json:"project_id"`
	Path             string                 `json:"path"`
	Checksum         string                 `json:"checksum"`
	Meta             map[string]interface{} `json:"meta"`
	TokenCount       int                    `json:"token_count"`
	RawContent       string                 `json:"raw_content"`
	InternalMetadata map[string]interface{} `json:"internal_metadata"`
	Ctime            int64                  `json:"ctime"`
	Mtime            int64                  `json:"mtime"`
}

type SectionRecord struct {
	FileID     string                 `json:"file_id"`
	ProjectID  string                 `json:"project_id"`
	Content    string                 `json:"content"`
	Meta       SectionMeta            `json:"meta"`
	FileMeta   map[string]interface{} `json:"file_meta"`
	Embedding  []float32              `json:"embedding"`
	TokenCount int                    `json:"token_count"`
	Ctime      int64                  `json:"ctime"`
}

type SectionMeta struct {
	LeadHeading *LeadHeading `json:"leadHeading,omitempty"`
}
