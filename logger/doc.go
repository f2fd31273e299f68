// Package logger wraps zerolog with the field names runkit logs under.
//
// Init installs the global logger from the logging section of the service
// config. Packages take a named logger from the registry with Get and
// narrow it per run:
//
//	log := logger.Get("runs").WithRun(runID, parentRunID, "upper", "chain")
//	log.Info("run finished", logger.Fields(logger.FieldDuration, 12))
package logger
