// Package serve exposes runnables over HTTP.
//
// Every registered runnable gets four POST endpoints under its path:
//
//	{path}/invoke         one input, one JSON output
//	{path}/batch          many inputs, outputs in input order
//	{path}/stream         Server-Sent Events, one "data" event per chunk
//	{path}/stream_events  Server-Sent Events, one "data" event per run event
//
// Request bodies carry the input and an optional per-request config:
//
//	{"input": "hello", "config": {"tags": ["web"], "run_name": "greet"}}
//
// Runs are cancelled when the client disconnects. Errors are returned with
// the HTTP status of their AppError code.
package serve
