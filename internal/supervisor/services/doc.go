// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package services provides suture.Service wrappers for fieldsync components.

Each wrapper turns a component's own lifecycle into suture's context-aware
Serve method:

  - StartStopService wraps anything with Start(ctx)/Stop()/IsRunning(), such
    as the retry runner and the queue compactor.
  - HTTPServerService wraps *http.Server with graceful shutdown.
  - ReconcileService runs one reconciliation sweep at startup and then tells
    the supervisor not to restart it.

Every wrapper implements fmt.Stringer so supervisor events name the service.
*/
package services
