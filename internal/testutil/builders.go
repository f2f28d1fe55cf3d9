package testutil

import (
	"sort"

	"tfcview/internal/types"
)

// Run builds a run snapshot. Timestamps are given as key/value pairs.
func Run(id string, status types.RunStatus, timestamps ...string) *types.Run {
	run := &types.Run{
		ID:               id,
		Status:           status,
		WorkspaceID:      "ws-1",
		PlanID:           "plan-" + id,
		ApplyID:          "apply-" + id,
		HasPolicyChecks:  true,
		HasTaskStages:    true,
		StatusTimestamps: map[string]string{},
	}
	for i := 0; i+1 < len(timestamps); i += 2 {
		run.StatusTimestamps[timestamps[i]] = timestamps[i+1]
	}
	return run
}

func Workspace(id, org, name string) *types.Workspace {
	return &types.Workspace{
		ID:               id,
		Name:             name,
		OrganizationName: org,
		Permissions: types.WorkspacePermissions{
			CanQueueRun: true,
			CanLock:     true,
			CanUnlock:   true,
		},
	}
}

func sortWorkspaces(list []*types.Workspace) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

func sortOrganizations(list []*types.Organization) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}
