// Copyright 2026 The Vidana Build Platform. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package videointelligence is a client for the Cloud Video Intelligence API
(v1beta2). Prefer the apiv1 package for new code; this version is kept for
callers pinned to the beta surface.
*/
package videointelligence // import "go.vidana.build/videointelligence/apiv1beta2"
