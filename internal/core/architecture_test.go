package core

import (
	"testing"

	"tripgroups/testutil"
)

func TestEngineDependsOnlyOnContracts(t *testing.T) {
	graph := testutil.LoadImportGraph(t, "tripgroups/internal/core", "tripgroups/pkg/domain")
	testutil.AssertBoundaries(t, graph,
		testutil.Boundary{
			Name: "engine",
			From: []string{"tripgroups/internal/core"},
			Forbidden: []string{
				"tripgroups/internal/adapters",
				"tripgroups/internal/infra",
				"tripgroups/internal/blob",
				"tripgroups/internal/bootstrap",
				"tripgroups/internal/config",
				"tripgroups/cmd",
			},
		},
		testutil.Boundary{
			Name:      "domain",
			From:      []string{"tripgroups/pkg/domain"},
			Forbidden: []string{"tripgroups/internal", "tripgroups/cmd"},
		},
	)
}
