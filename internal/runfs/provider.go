package runfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"tfcview/internal/cache"
	"tfcview/internal/client"
	"tfcview/internal/logging"
	"tfcview/internal/markdown"
)

const (
	DefaultCacheSize = 20
	DefaultTTL       = 10 * time.Second

	runsDir = "runs"
)

var (
	ErrNotFound     = errors.New("file not found")
	ErrNoPermission = errors.New("read-only file system")
)

type FileType int

const (
	TypeFile FileType = iota + 1
	TypeDirectory
)

func (t FileType) String() string {
	if t == TypeDirectory {
		return "directory"
	}
	return "file"
}

type FileStat struct {
	Type    FileType
	Size    int
	CTime   time.Time
	MTime   time.Time
	Content []byte
}

type Options struct {
	CacheSize  int
	TTL        time.Duration
	ConsoleURL string
	Location   *time.Location
	Logger     logging.Logger
	Now        func() time.Time
}

// Provider serves run detail documents as read-only files under
// /runs/<run-id>.
type Provider struct {
	api    markdown.API
	docs   *cache.LockingCache[string, FileStat]
	ttl    time.Duration
	now    func() time.Time
	opts   markdown.DocumentOptions
	logger logging.Logger
}

func NewProvider(api markdown.API, opts Options) *Provider {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	logger := opts.Logger.With(logging.Component("runfs"))
	return &Provider{
		api:  api,
		docs: cache.NewLocking[string, FileStat](opts.CacheSize),
		ttl:  opts.TTL,
		now:  opts.Now,
		opts: markdown.DocumentOptions{
			ConsoleURL: opts.ConsoleURL,
			Location:   opts.Location,
			Logger:     logger,
		},
		logger: logger,
	}
}

// RunPath is the file path of a run document.
func RunPath(runID string) string {
	return "/" + runsDir + "/" + runID
}

func (p *Provider) Stat(ctx context.Context, name string) (FileStat, error) {
	runID, err := splitPath(name)
	if err != nil {
		return FileStat{}, err
	}
	if runID == "" {
		now := p.now()
		return FileStat{Type: TypeDirectory, CTime: now, MTime: now}, nil
	}
	return p.document(ctx, runID)
}

func (p *Provider) ReadFile(ctx context.Context, name string) ([]byte, error) {
	runID, err := splitPath(name)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, fmt.Errorf("%s: is a directory", name)
	}
	stat, err := p.document(ctx, runID)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), stat.Content...), nil
}

// ReadDir lists nothing; documents are only reachable by run id.
func (p *Provider) ReadDir(ctx context.Context, name string) ([]string, error) {
	runID, err := splitPath(name)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		return nil, fmt.Errorf("%s: not a directory", name)
	}
	return nil, nil
}

func (p *Provider) WriteFile(context.Context, string, []byte) error { return ErrNoPermission }
func (p *Provider) Delete(context.Context, string) error            { return ErrNoPermission }
func (p *Provider) Rename(context.Context, string, string) error    { return ErrNoPermission }
func (p *Provider) CreateDirectory(context.Context, string) error   { return ErrNoPermission }

// Invalidate drops a cached run document.
func (p *Provider) Invalidate(runID string) {
	p.docs.Delete(runID)
}

func (p *Provider) document(ctx context.Context, runID string) (FileStat, error) {
	if entry, ok := p.docs.Entry(runID); ok && p.fresh(entry.Value) {
		return entry.Value, nil
	}
	stat, ok, err := p.docs.GetOrPopulate(ctx, runID, func(ctx context.Context) error {
		if entry, ok := p.docs.Entry(runID); ok && p.fresh(entry.Value) {
			return nil
		}
		doc, err := markdown.RunDocument(ctx, p.api, runID, p.opts)
		if err != nil {
			if client.IsNotFound(err) {
				p.docs.Delete(runID)
				return fmt.Errorf("%s: %w", RunPath(runID), ErrNotFound)
			}
			return err
		}
		now := p.now()
		ctime := now
		if entry, ok := p.docs.Entry(runID); ok {
			ctime = entry.Value.CTime
		}
		p.docs.Put(runID, FileStat{
			Type:    TypeFile,
			Size:    len(doc),
			CTime:   ctime,
			MTime:   now,
			Content: []byte(doc),
		})
		p.logger.Debug("run_document_built", logging.F("run_id", runID), logging.F("size", len(doc)))
		return nil
	})
	if err != nil {
		return FileStat{}, err
	}
	if !ok {
		return FileStat{}, fmt.Errorf("%s: %w", RunPath(runID), ErrNotFound)
	}
	return stat, nil
}

func (p *Provider) fresh(stat FileStat) bool {
	return p.now().Sub(stat.MTime) < p.ttl
}

// splitPath accepts "/", "/runs" and "/runs/<id>". An empty run id names
// a directory.
func splitPath(name string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(name))
	if clean == "/" {
		return "", nil
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	if parts[0] != runsDir || len(parts) > 2 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if len(parts) == 1 {
		return "", nil
	}
	return parts[1], nil
}
