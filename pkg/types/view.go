package types

// ViewSpec is one row of views.csv. Name is the matching key; SQL is used
// verbatim as the body of CREATE VIEW.
type ViewSpec struct {
	Name string
	SQL  string
}
