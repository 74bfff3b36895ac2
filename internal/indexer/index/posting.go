package index

// Field identifies which part of an entry a token came from.
type Field uint8

const (
	FieldName Field = iota
	FieldKeyword
	FieldSummary
	FieldBody
)

var fieldWeights = [...]float64{
	FieldName:    5,
	FieldKeyword: 3,
	FieldSummary: 2,
	FieldBody:    1,
}

var fieldNames = [...]string{
	FieldName:    "name",
	FieldKeyword: "keyword",
	FieldSummary: "summary",
	FieldBody:    "body",
}

// Weight is the score contribution of one occurrence of a token in f.
func (f Field) Weight() float64 {
	return fieldWeights[f]
}

func (f Field) String() string {
	return fieldNames[f]
}

// Posting records the accumulated weight of one token in one field of one
// entry. Ordinal is the entry's corpus position.
type Posting struct {
	Ordinal uint32
	EntryID string
	Field   Field
	Weight  float64
}

// PostingList is ordered by Ordinal, then Field.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats summarises a built index.
type Stats struct {
	Entries         int
	Terms           int
	Postings        int
	Tokens          int
	DanglingRefs    int
	CategoryEntries map[string]int
}
