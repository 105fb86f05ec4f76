// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import "strings"

// Entity keys the path layout binds to. They match the navigation keys the
// schema inspector derives from the default FCC layout; deployments without
// one of these tables simply ignore the corresponding name.
const (
	EntityAccelerator = "accelerator"
	EntityStage       = "stage"
	EntityCampaign    = "campaign"
	EntityDetector    = "detector"
)

// stageSuffix is the literal the production layout appends to stage
// directories ("SimEvents", "RecoEvents").
const stageSuffix = "Events"

// NavigationFromPath derives navigation entity names from a sample storage
// path. The production layout is positional: counting non-empty segments
// from zero, the accelerator sits at index 4, the stage at 6 (with its
// "…Events" directory suffix), the campaign at 7, and the detector at 8.
// Shorter paths yield only the positions they reach; an empty path yields
// nothing.
func NavigationFromPath(path string) map[string]string {
	segments := make([]string, 0, 10)
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	navigation := make(map[string]string, 4)
	assign := func(key string, index int) {
		if index < len(segments) {
			navigation[key] = segments[index]
		}
	}

	assign(EntityAccelerator, 4)
	assign(EntityStage, 6)
	assign(EntityCampaign, 7)
	assign(EntityDetector, 8)

	if stage, ok := navigation[EntityStage]; ok {
		navigation[EntityStage] = strings.TrimSuffix(stage, stageSuffix)
	}

	return navigation
}
