// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

/*
Package supervisor runs Skywave's long-lived services under suture v4.

The tree has three layers so that a failure in one does not restart the
others:

	RootSupervisor ("skywave")
	├── RadioSupervisor ("radio-layer")
	│   ├── SourceKeeperService (one per networked tuner)
	│   └── SessionManagerService
	├── ControlSupervisor ("control-layer")
	│   └── ControlHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A dropped rtl_tcp connection is retried by its keeper without touching open
streams; a panic in the HTTP server restarts only the listener.

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog, which takes the zerolog-backed slog handler from the logging
package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddRadioService(services.NewSessionManagerService(manager))
	tree.AddControlService(services.NewControlHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return tree.Serve(ctx)

See the services subpackage for the wrappers.
*/
package supervisor
