package dispatch

// Plan is everything the pipeline executor (C7) needs to turn an
// admitted job into live child processes (spec.md §4.4 "start_job").
// Dispatch decides WHAT to run; pipeline decides HOW (fork/exec, pipe
// wiring, descriptor hygiene).
type Plan struct {
	// Chain is the converter sequence resolved by the MIME filter
	// graph, pseudo-filters already dropped. Empty for remote printers.
	Chain []FilterChainEntry

	// Argv is the shared CUPS filter calling convention:
	// [printer-name, job-id, username, title, copies, options, filename].
	// The backend, if present, is the last process in Chain order and
	// pipeline substitutes DeviceURI for Argv[0] when invoking it.
	Argv []string

	// Env is shared by every child in the chain.
	Env []string

	// Filename is the current data file passed as argv[len(argv)-1].
	Filename string

	// DeviceURI backs the backend's argv[0] substitution and, for
	// file: schemes, tells pipeline to open the destination directly
	// instead of spawning a backend process.
	DeviceURI string

	EmitStartBanner bool
	EmitEndBanner   bool
}
