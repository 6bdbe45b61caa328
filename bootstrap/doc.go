// Package bootstrap wires the bidhouse service together and manages its
// lifecycle. NewApp runs the initialization phases in order: logger, config,
// data directories, metadata storage (SQLite or MongoDB), the optional
// ClickHouse archive and Redis cache, security sink composition, the chain
// clock, the auction service, and the HTTP API. Start launches the background
// services; Shutdown unwinds them in reverse.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
