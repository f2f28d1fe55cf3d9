package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tfcview/internal/cache"
	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/notify"
	"tfcview/internal/store"
	"tfcview/internal/types"
)

const (
	DefaultOrganizationCacheSize = 10
	DefaultWorkspaceCacheSize    = 20
)

// ErrOrganizationAccess wraps an unauthorized organization read.
var ErrOrganizationAccess = errors.New("the token cannot read the selected organization; use a token with access to all organizations")

// API is the subset of the remote client a session reads through.
type API interface {
	GetOrganization(ctx context.Context, name string) (*types.Organization, error)
	ListOrganizations(ctx context.Context) ([]*types.Organization, error)
	GetWorkspace(ctx context.Context, id string) (*types.Workspace, error)
	GetWorkspaceByName(ctx context.Context, organization, name string) (*types.Workspace, error)
	ListWorkspaces(ctx context.Context, organization, search string) ([]*types.Workspace, error)
	GetRun(ctx context.Context, id string, include ...string) (*types.Run, error)
}

type Options struct {
	ConsoleURL            string
	OrganizationCacheSize int
	WorkspaceCacheSize    int
	Store                 store.SessionStateStore
	Logger                logging.Logger
	Now                   func() time.Time
}

// Session owns the caches and the user's current selection: one
// organization and at most one watched workspace.
type Session struct {
	api    API
	opts   Options
	logger logging.Logger

	orgs       *cache.LockingCache[string, *types.Organization]
	workspaces *cache.LockingCache[string, *types.Workspace]

	mu               sync.Mutex
	organizationName string
	organization     *types.Organization
	watchingID       string
	watching         *types.Workspace

	orgChanged       *notify.Hub[*types.Organization]
	watchingChanged  *notify.Hub[*types.Workspace]
	workspaceChanged *notify.Hub[*types.Workspace]
}

func New(api API, opts Options) *Session {
	if opts.OrganizationCacheSize <= 0 {
		opts.OrganizationCacheSize = DefaultOrganizationCacheSize
	}
	if opts.WorkspaceCacheSize <= 0 {
		opts.WorkspaceCacheSize = DefaultWorkspaceCacheSize
	}
	if strings.TrimSpace(opts.ConsoleURL) == "" {
		opts.ConsoleURL = "https://app.terraform.io"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With(logging.Component("session"))
	return &Session{
		api:              api,
		opts:             opts,
		logger:           logger,
		orgs:             cache.NewLocking[string, *types.Organization](opts.OrganizationCacheSize),
		workspaces:       cache.NewLocking[string, *types.Workspace](opts.WorkspaceCacheSize),
		orgChanged:       notify.NewHub[*types.Organization](logger),
		watchingChanged:  notify.NewHub[*types.Workspace](logger),
		workspaceChanged: notify.NewHub[*types.Workspace](logger),
	}
}

// Restore reapplies the persisted selection. A watched workspace that no
// longer exists is dropped.
func (s *Session) Restore(ctx context.Context) error {
	if s.opts.Store == nil {
		return nil
	}
	state, err := s.opts.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	s.mu.Lock()
	s.organizationName = state.OrganizationName
	s.watchingID = state.WatchingWorkspaceID
	s.mu.Unlock()
	if state.OrganizationName != "" {
		if _, err := s.SetOrganization(ctx, state.OrganizationName); err != nil {
			return err
		}
	}
	if state.WatchingWorkspaceID != "" {
		if err := s.WatchWorkspace(ctx, state.WatchingWorkspaceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) OrganizationName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.organizationName
}

func (s *Session) Organization() *types.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.organization
}

// SetOrganization selects an organization and notifies observers with the
// resolved value, which is nil when it does not exist.
func (s *Session) SetOrganization(ctx context.Context, name string) (*types.Organization, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	s.organizationName = name
	s.organization = nil
	s.mu.Unlock()

	org, err := s.GetOrganization(ctx, name, true)
	if err != nil {
		if client.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %v", ErrOrganizationAccess, err)
		}
		return nil, err
	}
	s.mu.Lock()
	if s.organizationName == name {
		s.organization = org
	}
	s.mu.Unlock()

	s.logger.Info("organization_selected", logging.F("organization", name), logging.F("found", org != nil))
	s.orgChanged.Publish(org)
	s.persist(ctx)
	return org, nil
}

func (s *Session) WatchingWorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchingID
}

func (s *Session) WatchingWorkspace() *types.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

func (s *Session) IsWatchingWorkspace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchingID != "" && s.watching != nil
}

// WatchWorkspace resolves id and announces it as the watched workspace. An
// empty id stops watching.
func (s *Session) WatchWorkspace(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	s.watchingID = id
	s.watching = nil
	s.mu.Unlock()

	ws, err := s.GetWorkspace(ctx, id, true)
	if err != nil {
		if client.IsUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrOrganizationAccess, err)
		}
		return err
	}
	s.mu.Lock()
	if s.watchingID == id {
		s.watching = ws
	}
	s.mu.Unlock()

	s.logger.Info("workspace_watch_selected", logging.F("workspace_id", id), logging.F("found", ws != nil))
	s.watchingChanged.Publish(ws)
	s.persist(ctx)
	return nil
}

func (s *Session) StopWatching(ctx context.Context) error {
	return s.WatchWorkspace(ctx, "")
}

// ChangeInWorkspace records that something was written to ws. The cached
// copy is dropped so the next read fetches fresh data.
func (s *Session) ChangeInWorkspace(ws *types.Workspace) {
	if ws == nil {
		return
	}
	s.workspaces.Delete(ws.ID)
	s.workspaceChanged.Publish(ws)
}

// OnChangeOrganization registers fn and returns a function that removes it.
func (s *Session) OnChangeOrganization(fn func(*types.Organization)) func() {
	id := s.orgChanged.Subscribe(fn)
	return func() { s.orgChanged.Unsubscribe(id) }
}

func (s *Session) OnWatchingWorkspace(fn func(*types.Workspace)) func() {
	id := s.watchingChanged.Subscribe(fn)
	return func() { s.watchingChanged.Unsubscribe(id) }
}

func (s *Session) OnChangeInWorkspace(fn func(*types.Workspace)) func() {
	id := s.workspaceChanged.Subscribe(fn)
	return func() { s.workspaceChanged.Unsubscribe(id) }
}

func (s *Session) persist(ctx context.Context) {
	if s.opts.Store == nil {
		return
	}
	s.mu.Lock()
	state := &types.SessionState{
		OrganizationName:    s.organizationName,
		WatchingWorkspaceID: s.watchingID,
		UpdatedAt:           s.opts.Now().UTC(),
	}
	s.mu.Unlock()
	if err := s.opts.Store.Save(context.WithoutCancel(ctx), state); err != nil {
		s.logger.Warn("session_state_save_failed", logging.Err(err))
	}
}
