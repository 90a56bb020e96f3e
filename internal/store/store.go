package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
)

// Store resolves category identifiers to model bundles.
type Store struct {
	baseDir     string
	loadTimeout time.Duration
	topLevel    *Bundle
	cache       *lru.Cache
	log         *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the store and eagerly loads the top-level bundle. A
// missing or malformed top-level artifact is returned as an error so the
// process can refuse to come up.
func NewStore(cfg *domain.ModelsConfig, logger *logrus.Logger) (*Store, error) {
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		baseDir:     cfg.Dir,
		loadTimeout: cfg.LoadTimeout,
		cache:       cache,
		log:         logger,
		locks:       make(map[string]*sync.Mutex),
	}

	topDir := filepath.Join(cfg.Dir, TopLevelDirName)
	logger.WithField("dir", topDir).Info("Loading top-level model bundle")

	bundle, err := s.loadWithTimeout(context.Background(), topDir, domain.TopLevelBundle)
	if err != nil {
		return nil, err
	}
	s.topLevel = bundle

	logger.WithFields(logrus.Fields{
		"classes":  bundle.Forest.NumClasses,
		"trees":    len(bundle.Forest.Trees),
		"features": bundle.Forest.NumFeatures,
	}).Info("Top-level model bundle loaded")

	return s, nil
}

// TopLevel returns the diagnostic-group bundle loaded at startup.
func (s *Store) TopLevel() *Bundle {
	return s.topLevel
}

// Category resolves a human-readable category label to its bundle, loading
// it on first use. Concurrent first requests for the same key serialize on
// a per-key lock so each bundle is loaded at most once.
func (s *Store) Category(ctx context.Context, label string) (*Bundle, error) {
	slug := Slug(label)

	if cached, ok := s.cache.Get(slug); ok {
		return cached.(*Bundle), nil
	}

	lock := s.keyLock(slug)
	lock.Lock()
	defer lock.Unlock()

	// Another request may have finished the load while we waited.
	if cached, ok := s.cache.Get(slug); ok {
		return cached.(*Bundle), nil
	}

	dir := filepath.Join(s.baseDir, CategoryDirPrefix+slug, CategorySubdir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.log.WithFields(logrus.Fields{
			"category": label,
			"slug":     slug,
		}).Warn("No trained bundle for requested category")
		return nil, domain.NewCategoryModelNotFoundError(label, slug)
	}

	bundle, err := s.loadWithTimeout(ctx, dir, domain.CategoryBundle)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"slug":  slug,
			"error": err,
		}).Error("Failed to load category bundle")
		return nil, err
	}

	s.cache.Add(slug, bundle)
	s.log.WithFields(logrus.Fields{
		"slug":    slug,
		"classes": bundle.Forest.NumClasses,
	}).Info("Category bundle loaded")

	return bundle, nil
}

// keyLock returns the mutex guarding loads for one slug.
func (s *Store) keyLock(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[slug]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[slug] = lock
	}
	return lock
}

// loadWithTimeout bounds a bundle load against slow storage. Artifacts are
// plain files, so the load itself cannot be interrupted; the caller just
// stops waiting for it.
func (s *Store) loadWithTimeout(ctx context.Context, dir string, kind domain.BundleKind) (*Bundle, error) {
	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}

	type result struct {
		bundle *Bundle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		b, err := LoadBundle(dir, kind)
		done <- result{b, err}
	}()

	select {
	case r := <-done:
		return r.bundle, r.err
	case <-ctx.Done():
		return nil, domain.NewArtifactLoadError(dir, ctx.Err())
	}
}
