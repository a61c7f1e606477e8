package state

import "context"

// Repository persists the state document. Load never fails the caller
// with unusable data: missing or corrupt storage yields the canonical
// default document. Save writes the full document, merged over the
// default schema so the on-disk copy is always a schema superset.
type Repository interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}
