package repo

import "database/sql"

// Store bundles the file and section repos behind the single interface the
// ingest writer consumes.
type Store struct {
	*FileRepo
	*SectionRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{FileRepo: NewFileRepo(db), SectionRepo: NewSectionRepo(db)}
}
