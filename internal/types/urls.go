package types

import (
	"net/url"
	"strings"
)

// Console addresses follow <root>/app/<org>/workspaces/<name>/runs/<id>.
// Without a root there is no address and every helper returns "".

func OrganizationURL(root, organization string) string {
	root = strings.TrimRight(strings.TrimSpace(root), "/")
	if root == "" || organization == "" {
		return ""
	}
	return root + "/app/" + url.PathEscape(organization)
}

func WorkspaceURL(root, organization, workspace string) string {
	if workspace == "" {
		return ""
	}
	base := OrganizationURL(root, organization)
	if base == "" {
		return ""
	}
	return base + "/workspaces/" + url.PathEscape(workspace)
}

func RunURL(root string, ws *Workspace, runID string) string {
	if ws == nil || runID == "" {
		return ""
	}
	base := WorkspaceURL(root, ws.OrganizationName, ws.Name)
	if base == "" {
		return ""
	}
	return base + "/runs/" + runID
}
