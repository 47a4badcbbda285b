// Copyright 2026 The Vidana Build Platform. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lro provides a client for consuming long-running operations (LROs) as
defined by the google.longrunning package. An LRO is an asynchronous remote
call which a service acknowledges immediately and completes later; the
acknowledgment carries an operation name which can be polled for status.

The package has three main pieces:
  - Handle: the pure in-memory state of one operation, updated from polled
    status and never mutated concurrently.
  - Poller: the fetch loop which repeatedly calls the originating service's
    GetOperation method until the operation reaches a terminal state, is
    canceled locally, exceeds its deadline, or runs out of transient retries.
  - Future: the caller-facing handle exposing progress and completion
    listeners, cancellation and a blocking Wait.

Any service implementing a GetOperation method, and therefore satisfying the
[OperationsService] interface, can be polled; this includes the generated
google.longrunning Operations clients.

// More details on LROs are available at: https://google.aip.dev/151
*/
package lro // import "go.vidana.build/videointelligence/lro"
