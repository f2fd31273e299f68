// Package callbacks dispatches run lifecycle notifications to observers.
//
// A handler is any value implementing one or more of the hook interfaces
// (StartHandler, EndHandler, ErrorHandler, TokenHandler, ChainStartHandler,
// ChainEndHandler). The Manager calls them synchronously in registration
// order. A handler that panics is recovered and logged; it never fails the
// run it observes.
//
// The package also ships handlers for the ambient stack: structured logs
// (NewLoggingHandler), OpenTelemetry spans (NewTracingHandler) and run
// metrics (NewMetricsHandler).
package callbacks
