// Copyright 2026 The Vidana Build Platform. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package videointelligence is a client for the Cloud Video Intelligence API
(v1). It detects objects, explicit content and scene changes in videos, and
annotates them against a catalog of entities.

Video annotation is a long-running operation: AnnotateVideo returns an
[AnnotateVideoOperation] backed by the lro package, which polls the service
for progress and completion in the background.

	client, err := videointelligence.NewClient(ctx)
	if err != nil {
		// handle error
	}
	defer client.Close()

	op, err := client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputUri: "gs://my-bucket/cat.mp4",
		Features: []videointelligencepb.Feature{videointelligencepb.Feature_LABEL_DETECTION},
	})
	if err != nil {
		// handle error
	}
	resp, err := op.Wait(ctx, 0)
*/
package videointelligence // import "go.vidana.build/videointelligence/apiv1"
