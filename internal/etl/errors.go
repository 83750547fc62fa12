package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/cinesync/pkg/models"
)

// MalformedError marks an aggregate the transformer refuses to turn into
// a document. It is a data problem at the source and is never retried.
type MalformedError struct {
	Stream models.Stream
	ID     string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s aggregate %q: %s", e.Stream, e.ID, e.Reason)
}

type FailedDocument struct {
	ID      string
	Code    int
	Message string
}

// PartialWriteError reports a bulk write where at least one document was
// not persisted. The whole batch is considered failed.
type PartialWriteError struct {
	Collection string
	Total      int
	Failed     []FailedDocument
	// Unacknowledged counts documents the server neither matched nor
	// upserted without reporting an error for them.
	Unacknowledged int
}

func (e *PartialWriteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bulk write to %s: %d of %d documents failed", e.Collection, len(e.Failed)+e.Unacknowledged, e.Total)
	for i, f := range e.Failed {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: code %d: %s", f.ID, f.Code, f.Message)
	}
	return b.String()
}

// SchemaRejectedError means the target refused to create a collection or
// its indexes. Operator intervention is required.
type SchemaRejectedError struct {
	Collection string
	Err        error
}

func (e *SchemaRejectedError) Error() string {
	return fmt.Sprintf("schema for %s rejected: %v", e.Collection, e.Err)
}

func (e *SchemaRejectedError) Unwrap() error { return e.Err }
