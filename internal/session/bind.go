package session

import (
	"tfcview/internal/types"
)

// Watcher is the status scheduler a session drives.
type Watcher interface {
	StartWatch(orgID, workspaceID, nameHint string) bool
	StopWatch()
	Refresh()
}

// BindWatch keeps w following the watched workspace and refreshes it when
// that workspace changes. The returned function undoes the binding.
func (s *Session) BindWatch(w Watcher) func() {
	stopWatching := s.OnWatchingWorkspace(func(ws *types.Workspace) {
		if ws == nil || ws.OrganizationName == "" {
			w.StopWatch()
			return
		}
		if !w.StartWatch(ws.OrganizationName, ws.ID, ws.Name) {
			w.Refresh()
		}
	})
	stopChanges := s.OnChangeInWorkspace(func(ws *types.Workspace) {
		if ws != nil && ws.ID == s.WatchingWorkspaceID() {
			w.Refresh()
		}
	})
	return func() {
		stopWatching()
		stopChanges()
	}
}
