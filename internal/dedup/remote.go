package dedup

import (
	"context"
	"fmt"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/naming"
)

// ItemLookup is the remote archive's existence check.
type ItemLookup interface {
	ItemExists(ctx context.Context, identifier string) (bool, error)
}

// RemoteCheckError means the remote archive could not be asked. It is never
// reported as "absent".
type RemoteCheckError struct {
	Identifier string
	Cause      error
}

func (e *RemoteCheckError) Error() string {
	return fmt.Sprintf("dedup: check remote item %s: %v", e.Identifier, e.Cause)
}

func (e *RemoteCheckError) Unwrap() error { return e.Cause }

type RemoteChecker struct {
	Archive ItemLookup
}

// Exists reports whether the archive item for rec exists, along with the item
// identifier that was checked.
func (c *RemoteChecker) Exists(ctx context.Context, rec episode.Record) (bool, string, error) {
	id := naming.ItemIdentifier(rec)
	ok, err := c.Archive.ItemExists(ctx, id)
	if err != nil {
		return false, id, &RemoteCheckError{Identifier: id, Cause: err}
	}
	return ok, id, nil
}
