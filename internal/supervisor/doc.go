// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package supervisor runs the long-lived parts of fieldsync under a suture v4
supervisor tree.

	RootSupervisor ("fieldsync")
	├── DataSupervisor ("data-layer")
	│   └── CompactorService
	├── WorkerSupervisor ("worker-layer")
	│   ├── QueueRunnerService
	│   └── ReconcileService (one shot, when enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in one layer restarts only that layer's services. The retry queue keeps
its leases durably, so a runner restarted mid-run does not run a descriptor
twice; the lease simply expires and the descriptor becomes due again.

Supervisor events are logged through sutureslog into the zerolog logger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewCompactorService(compactor))
	tree.AddWorkerService(services.NewQueueRunnerService(runner))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
