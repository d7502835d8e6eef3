/*
store.go - Record store interface

PURPOSE:
  The service persists the whole collection on every mutation. Backends
  only need to load everything and atomically replace everything.

CONTRACT:
  LoadAll: a missing store is an empty collection, not an error.
           Duplicate ids collapse to one record (see Dedupe).
  SaveAll: replaces the collection atomically. A reader never observes a
           partially written collection.

IMPLEMENTATIONS:
  - store/jsonfile: single JSON document (default)
  - store/sqlite:   SQLite table, replaced inside one transaction
  - store/memory:   in-process, for tests
*/
package leave

import "context"

// Store loads and replaces the full record collection.
type Store interface {
	LoadAll(ctx context.Context) ([]Request, error)
	SaveAll(ctx context.Context, records []Request) error
}

// Dedupe collapses records sharing an id. The last occurrence's value is
// kept at the first occurrence's position. Records without an id are
// dropped and a missing status reads as pending.
func Dedupe(records []Request) []Request {
	pos := make(map[string]int, len(records))
	out := make([]Request, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if r.Status == "" {
			r.Status = StatusPending
		}
		if i, seen := pos[r.ID]; seen {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
