// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package submission is the offline-durable submission pipeline.

Submit saves a record locally before anything touches the network, then tries
to send it straight away:

	delivered   -> Receipt{Delivered: true}
	unreachable -> retry scheduled, Receipt{Queued: true}, nil error
	rejected    -> *SendError, no retry
	save failed -> error wrapping store.ErrStorageFault, nothing sent

A connectivity failure is never an error to the caller: the record is on
disk and a durable retry descriptor is queued. The RetryTask registered for
each record kind later reloads the record by id and sends it again:

	loaded + sent    -> mark delivered, upload photos, queue.ResultSuccess
	not found        -> queue.ResultFailure
	unreachable      -> queue.ResultRetryLater
	rejected         -> queue.ResultFailure

Photo upload failures after a successful send are logged and counted but do
not change the result. The record is already on the server and resending it
would create a duplicate.

Reconciler is an opt-in startup sweep that schedules retries for records that
were saved but never delivered or rejected, covering a crash between the
local save and the retry enqueue.
*/
package submission
