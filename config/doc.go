// Package config loads runkit service configuration.
//
// Values come from a config.yml found next to the service (or given
// explicitly), then from a .env file, then from the process environment.
// Environment variables map onto nested keys by splitting on underscores,
// so ENGINE_MAX_CONCURRENCY sets engine.max_concurrency.
//
// # Usage
//
//	cfg, err := config.Load("runkit")
//	if err != nil {
//	    return err
//	}
//	out, err := runnable.InvokeConfig(ctx, chain, input, cfg.Engine.RunConfig())
package config
