package main

import (
	"context"

	"tfcview/internal/actions"
	"tfcview/internal/client"
	"tfcview/internal/config"
	"tfcview/internal/markdown"
	"tfcview/internal/poller"
	"tfcview/internal/session"
	"tfcview/internal/types"
	"tfcview/internal/watch"
)

// remoteAPI is everything the commands read from or write to the remote
// service.
type remoteAPI interface {
	session.API
	actions.API
	poller.API
	markdown.API
	watch.API
	CurrentUser(ctx context.Context) (*types.User, error)
}

type apiFactory func(cfg config.Config) (remoteAPI, error)

func newClientAPI(cfg config.Config) (remoteAPI, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	if !c.HasToken() {
		return nil, client.ErrNoToken
	}
	return c, nil
}

var _ remoteAPI = (*client.Client)(nil)
