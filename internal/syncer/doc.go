// Package syncer reconciles local cards and stats with the remote store.
//
// Push sends everything marked dirty and clears the markers only after the
// remote store accepted it. Pull fetches the remote copies and merges them
// last-write-wins by UpdatedAt. Pushes triggered by study activity run on
// the task worker pool; users whose push failed or could not be queued are
// retried by the periodic sweep.
package syncer
