package session

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"tfcview/internal/cache"
	"tfcview/internal/client"
	"tfcview/internal/types"
)

// Lookups report a missing resource as nil with no error.

func (s *Session) GetOrganization(ctx context.Context, name string, useCache bool) (*types.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	load := func(ctx context.Context) (*types.Organization, error) {
		return s.api.GetOrganization(ctx, name)
	}
	var (
		org *types.Organization
		err error
	)
	if useCache {
		org, err = cache.Load(ctx, s.orgs, name, load)
	} else {
		org, err = load(ctx)
		if err == nil && org != nil {
			s.orgs.Put(org.Name, org)
		}
	}
	return absentOnNotFound(org, err)
}

func (s *Session) ListOrganizations(ctx context.Context) ([]*types.Organization, error) {
	orgs, err := s.api.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		s.orgs.Put(org.Name, org)
	}
	return orgs, nil
}

func (s *Session) GetWorkspace(ctx context.Context, id string, useCache bool) (*types.Workspace, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	load := func(ctx context.Context) (*types.Workspace, error) {
		return s.api.GetWorkspace(ctx, id)
	}
	var (
		ws  *types.Workspace
		err error
	)
	if useCache {
		ws, err = cache.Load(ctx, s.workspaces, id, load)
	} else {
		ws, err = load(ctx)
		if err == nil && ws != nil {
			s.workspaces.Put(ws.ID, ws)
		}
	}
	return absentOnNotFound(ws, err)
}

func (s *Session) GetWorkspaceByName(ctx context.Context, organization, name string) (*types.Workspace, error) {
	organization = strings.TrimSpace(organization)
	name = strings.TrimSpace(name)
	if organization == "" || name == "" {
		return nil, nil
	}
	ws, err := s.api.GetWorkspaceByName(ctx, organization, name)
	if err == nil && ws != nil {
		s.workspaces.Put(ws.ID, ws)
	}
	return absentOnNotFound(ws, err)
}

func (s *Session) ListWorkspaces(ctx context.Context, organization string) ([]*types.Workspace, error) {
	list, err := s.api.ListWorkspaces(ctx, organization, "")
	if err != nil {
		return nil, err
	}
	for _, ws := range list {
		s.workspaces.Put(ws.ID, ws)
	}
	return list, nil
}

type workspaceNames []*types.Workspace

func (w workspaceNames) String(i int) string { return w[i].Name }
func (w workspaceNames) Len() int            { return len(w) }

// FindWorkspaces lists the organization's workspaces whose names match query,
// best match first. An empty query returns them all.
func (s *Session) FindWorkspaces(ctx context.Context, organization, query string) ([]*types.Workspace, error) {
	list, err := s.ListWorkspaces(ctx, organization)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return list, nil
	}
	matches := fuzzy.FindFrom(query, workspaceNames(list))
	out := make([]*types.Workspace, 0, len(matches))
	for _, match := range matches {
		out = append(out, list[match.Index])
	}
	return out, nil
}

func (s *Session) GetRun(ctx context.Context, id string, include ...string) (*types.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	run, err := s.api.GetRun(ctx, id, include...)
	return absentOnNotFound(run, err)
}

func absentOnNotFound[T any](value *T, err error) (*T, error) {
	if err != nil {
		if client.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}
