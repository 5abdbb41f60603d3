package repo

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/odvcencio/snap/pkg/index"
	"github.com/odvcencio/snap/pkg/object"
)

// DirName is the name of the metadata directory at the repository root.
const DirName = ".snap"

// Repo represents an opened snap repository.
type Repo struct {
	RootDir string        // working directory root
	SnapDir string        // .snap/ directory
	Store   *object.Store // content-addressed object store
	Index   *index.Index  // staging ledger
	Config  *Config
	Logger  *zap.Logger
}

// Option configures a Repo at Init or Open time.
type Option func(*Repo)

// WithLogger sets the logger used by the repository and its object store.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.Logger = l
		}
	}
}

func newRepo(root string, cfg *Config, opts []Option) *Repo {
	snapDir := filepath.Join(root, DirName)
	r := &Repo{
		RootDir: root,
		SnapDir: snapDir,
		Config:  cfg,
		Logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Store = r.newStore()
	r.Index = index.New(filepath.Join(snapDir, "index"))
	return r
}

func (r *Repo) newStore() *object.Store {
	return object.NewStore(r.SnapDir,
		object.WithCompressionLevel(r.Config.Core.Compression),
		object.WithLogger(r.Logger.Named("object")),
	)
}

// UseLogger swaps the logger of an opened repository. The CLI needs the
// repository config before it can pick a log level.
func (r *Repo) UseLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.Logger = l
	r.Store = r.newStore()
}
