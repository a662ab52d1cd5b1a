// Package command holds the catalog of named actions and the dispatch
// pipeline that executes them.
//
// # Catalog
//
// Actions are registered once at startup with a name, ordered parameter
// declarations, and a Perform function. Docs() renders the catalog as the
// human-readable command list given to the monitor model.
//
// # Dispatch
//
// Submit resolves an action by name, appends a "delivered" entry to the
// action log, and runs Perform on its own goroutine. Completion appends a
// "finished" or "error" entry. Unknown actions produce a "warning" entry
// and are otherwise ignored; one failing action never blocks the others in
// a batch.
//
// Arguments arrive as a name-to-value map and are flattened into the
// declared parameter order. Omitted parameters become nil, undeclared
// ones are dropped.
package command
