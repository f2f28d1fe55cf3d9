package client

import (
	"context"

	tfe "github.com/hashicorp/go-tfe"

	"tfcview/internal/types"
)

func (c *Client) GetOrganization(ctx context.Context, name string) (*types.Organization, error) {
	if err := requireID("organization", name); err != nil {
		return nil, err
	}
	org, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.Organization, error) {
		return api.Organizations.Read(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return convertOrganization(org), nil
}

func (c *Client) ListOrganizations(ctx context.Context) ([]*types.Organization, error) {
	opts := &tfe.OrganizationListOptions{ListOptions: tfe.ListOptions{PageNumber: 1, PageSize: pageSize}}
	var orgs []*types.Organization
	for {
		list, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.OrganizationList, error) {
			return api.Organizations.List(ctx, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, org := range list.Items {
			orgs = append(orgs, convertOrganization(org))
		}
		next, ok := nextPage(list.Pagination, opts.PageNumber)
		if !ok {
			return orgs, nil
		}
		opts.PageNumber = next
	}
}

func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	user, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (*tfe.User, error) {
		return api.Users.ReadCurrent(ctx)
	})
	if err != nil {
		return nil, err
	}
	return convertUser(user), nil
}
