package consts

const (
	// DefaultDBName is the default database name.
	DefaultDBName = "dossier"

	// TableNamePairs is the table/collection name for question-answer pairs.
	TableNamePairs = "qa_pairs"

	// Column names
	ColID          = "id"
	ColQuestion    = "question"
	ColAnswer      = "answer"
	ColSourceFile  = "source_file"
	ColCategory    = "category"
	ColFingerprint = "fingerprint"
	ColCreatedAt   = "created_at"

	// Neo4j specific
	LabelPair     = "QAPair"
	LabelSequence = "Sequence"
)
