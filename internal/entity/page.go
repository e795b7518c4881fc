package entity

// ProvidedDataKind classifies the auxiliary resource a quiz page links to.
type ProvidedDataKind string

const (
	ProvidedDataNone    ProvidedDataKind = "none"
	ProvidedDataTabular ProvidedDataKind = "tabular"
	ProvidedDataBinary  ProvidedDataKind = "binary"
	ProvidedDataHTML    ProvidedDataKind = "html"
)

// ProvidedData holds the content of the single "provided data" resource
// referenced by a quiz page. Exactly one of Rows, Raw or HTML is populated,
// according to Kind.
type ProvidedData struct {
	Kind ProvidedDataKind
	Rows []map[string]string
	Raw  []byte
	HTML string
}

// ExtractedPage is everything the browser pulls out of one quiz page. It is
// built once per question and discarded after the question resolves.
type ExtractedPage struct {
	SourceURL       string
	HTML            string
	VisibleText     string
	Screenshot      []byte
	CodeBlocks      []string
	ResourceLinks   []string
	ProvidedDataURL string
	ProvidedData    ProvidedData
}
