package types

import "time"

type WorkspacePermissions struct {
	CanQueueRun     bool
	CanQueueApply   bool
	CanQueueDestroy bool
	CanLock         bool
	CanUnlock       bool
	CanForceUnlock  bool
	CanUpdate       bool
}

type Workspace struct {
	ID               string
	Name             string
	Description      string
	Locked           bool
	AutoApply        bool
	TerraformVersion string
	UpdatedAt        time.Time
	Permissions      WorkspacePermissions

	OrganizationName string
	CurrentRunID     string
	LatestRunID      string
}

type Organization struct {
	ID    string
	Name  string
	Email string
}

type User struct {
	ID       string
	Username string
	Email    string
}
