package types

import "time"

// SessionState is what survives between invocations: the selected
// organization and the workspace whose status is being watched.
type SessionState struct {
	OrganizationName    string    `json:"organization_name,omitempty"`
	WatchingWorkspaceID string    `json:"watching_workspace_id,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}
