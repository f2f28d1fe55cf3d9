package client

import (
	"context"
	"strings"

	tfe "github.com/hashicorp/go-tfe"

	"tfcview/internal/types"
)

const pageSize = 100

// GetWorkspace reads a workspace by id and fills LatestRunID from its
// newest run.
func (c *Client) GetWorkspace(ctx context.Context, id string) (*types.Workspace, error) {
	if err := requireID("workspace", id); err != nil {
		return nil, err
	}
	ws, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Workspace, error) {
		return api.Workspaces.ReadByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return c.withLatestRun(ctx, convertWorkspace(ws))
}

func (c *Client) GetWorkspaceByName(ctx context.Context, organization, name string) (*types.Workspace, error) {
	if err := requireID("organization", organization); err != nil {
		return nil, err
	}
	if err := requireID("workspace", name); err != nil {
		return nil, err
	}
	ws, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Workspace, error) {
		return api.Workspaces.Read(ctx, organization, name)
	})
	if err != nil {
		return nil, err
	}
	return c.withLatestRun(ctx, convertWorkspace(ws))
}

func (c *Client) withLatestRun(ctx context.Context, ws *types.Workspace) (*types.Workspace, error) {
	runs, err := c.ListWorkspaceRuns(ctx, ws.ID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		ws.LatestRunID = runs[0].ID
	}
	return ws, nil
}

// ListWorkspaces follows pagination until every workspace whose name
// contains search has been read.
func (c *Client) ListWorkspaces(ctx context.Context, organization, search string) ([]*types.Workspace, error) {
	if err := requireID("organization", organization); err != nil {
		return nil, err
	}
	opts := &tfe.WorkspaceListOptions{
		ListOptions: tfe.ListOptions{PageNumber: 1, PageSize: pageSize},
		Search:      strings.TrimSpace(search),
	}
	var workspaces []*types.Workspace
	for {
		list, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.WorkspaceList, error) {
			return api.Workspaces.List(ctx, organization, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, ws := range list.Items {
			workspaces = append(workspaces, convertWorkspace(ws))
		}
		next, ok := nextPage(list.Pagination, opts.PageNumber)
		if !ok {
			return workspaces, nil
		}
		opts.PageNumber = next
	}
}

func (c *Client) LockWorkspace(ctx context.Context, id, reason string) (*types.Workspace, error) {
	if err := requireID("workspace", id); err != nil {
		return nil, err
	}
	ws, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Workspace, error) {
		return api.Workspaces.Lock(ctx, id, tfe.WorkspaceLockOptions{Reason: optionalString(reason)})
	})
	if err != nil {
		return nil, err
	}
	return convertWorkspace(ws), nil
}

func (c *Client) UnlockWorkspace(ctx context.Context, id string) (*types.Workspace, error) {
	if err := requireID("workspace", id); err != nil {
		return nil, err
	}
	ws, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Workspace, error) {
		return api.Workspaces.Unlock(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertWorkspace(ws), nil
}

func (c *Client) ForceUnlockWorkspace(ctx context.Context, id string) (*types.Workspace, error) {
	if err := requireID("workspace", id); err != nil {
		return nil, err
	}
	ws, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Workspace, error) {
		return api.Workspaces.ForceUnlock(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return convertWorkspace(ws), nil
}

func nextPage(p *tfe.Pagination, current int) (int, bool) {
	if p == nil || p.NextPage <= current {
		return 0, false
	}
	return p.NextPage, true
}
