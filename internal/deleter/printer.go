package deleter

import (
	"errors"
	"fmt"
	"io"

	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
)

// printer writes the human-readable run transcript. Write errors are ignored;
// a closed stdout must not change the outcome of a deletion run.
type printer struct {
	w io.Writer
}

func (p printer) searching(query string, accountID int) {
	fmt.Fprintf(p.w, "--- Step 1: Searching for entities matching: %s (Account ID: %d) ---\n", query, accountID)
}

func (p printer) searchFailed(err error) {
	fmt.Fprintf(p.w, "FATAL ERROR during search. Check your API Key or Query syntax. Errors: %s\n", err)
}

func (p printer) noneFound() {
	fmt.Fprintln(p.w, "No entities found matching the criteria. Nothing to delete.")
}

func (p printer) found(res *nerdgraph.SearchResult, dryRun bool) {
	if dryRun {
		fmt.Fprintf(p.w, "Found %d entities (dry run, nothing will be deleted).\n", len(res.Entities))
	} else {
		fmt.Fprintf(p.w, "Found %d entities to delete.\n", len(res.Entities))
	}
	if res.Truncated {
		fmt.Fprintf(p.w, "Note: %d entities match in total; only the first page of %d is processed. Re-run to continue.\n",
			res.Total, len(res.Entities))
	}
}

func (p printer) deletionPhase(dryRun bool) {
	if dryRun {
		fmt.Fprintln(p.w, "\n--- Step 2: Listing Entities (dry run) ---")
		return
	}
	fmt.Fprintln(p.w, "\n--- Step 2: Executing Deletion Mutations ---")
}

func (p printer) wouldDelete(e nerdgraph.Entity) {
	fmt.Fprintf(p.w, "   -> Would delete %s '%s' (%s).\n", e.Type, e.Name, e.GUID)
}

func (p printer) deleting(e nerdgraph.Entity) {
	fmt.Fprintf(p.w, "   -> Deleting %s '%s' (%s)... ", e.Type, e.Name, e.GUID)
}

func (p printer) success() {
	fmt.Fprintln(p.w, "SUCCESS.")
}

func (p printer) failure(err error) {
	fmt.Fprintf(p.w, "FAILED. Error: %s\n", failureMessage(err))
}

func (p printer) interrupted(remaining int) {
	fmt.Fprintf(p.w, "\nInterrupted: %d entities were not processed.\n", remaining)
}

func (p printer) summary(r *Result) {
	if r.DryRun {
		fmt.Fprintf(p.w, "\n--- Dry Run Complete: %d entities would be deleted. ---\n", r.Found)
		return
	}
	fmt.Fprintf(p.w, "\n--- Deletion Complete: %d of %d entities successfully deleted. ---\n", r.Deleted, r.Found)
}

// failureMessage prefers the first GraphQL error message, matching what the
// API shows for the rejected mutation.
func failureMessage(err error) string {
	var gqlErr *nerdgraph.GraphQLError
	if errors.As(err, &gqlErr) && gqlErr.First() != "" {
		return gqlErr.First()
	}
	return err.Error()
}
