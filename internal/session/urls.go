package session

import (
	"context"

	"tfcview/internal/types"
)

func (s *Session) ConsoleURL() string {
	return s.opts.ConsoleURL
}

func (s *Session) URLForOrganization(name string) string {
	if name == "" {
		return ""
	}
	return types.OrganizationURL(s.opts.ConsoleURL, name)
}

func (s *Session) URLForWorkspace(ws *types.Workspace) string {
	if ws == nil {
		return ""
	}
	return types.WorkspaceURL(s.opts.ConsoleURL, ws.OrganizationName, ws.Name)
}

// URLForRun resolves the run's workspace through the cache. It returns ""
// when the workspace cannot be found.
func (s *Session) URLForRun(ctx context.Context, run *types.Run) (string, error) {
	if run == nil || run.WorkspaceID == "" {
		return "", nil
	}
	ws, err := s.GetWorkspace(ctx, run.WorkspaceID, true)
	if err != nil || ws == nil {
		return "", err
	}
	return types.RunURL(s.opts.ConsoleURL, ws, run.ID), nil
}
