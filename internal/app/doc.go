// Package app wires the tender dashboard together: configuration, logging,
// telemetry, the dataset service, the assistant, the websocket hub and the
// HTTP router.
//
// New builds everything from a Config without starting anything. Start
// launches the hub, the runtime sampler, the optional initial dataset load and
// the HTTP server; Stop shuts them down in reverse. Run combines both and
// blocks until SIGINT or SIGTERM.
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Initialization errors are returned, never passed to os.Exit, so main keeps
// control of the exit code.
package app
