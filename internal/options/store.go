package options

import "sync"

// Store holds the current options and output directory. Updates are partial
// merges so callers only name what changed.
type Store struct {
	mu        sync.RWMutex
	opts      Options
	outputDir string
}

func NewStore(initial Options, outputDir string) *Store {
	return &Store{opts: initial.Clone(), outputDir: outputDir}
}

// Update applies fn to a copy of the current options and stores the result
// if it validates.
func (s *Store) Update(fn func(*Options)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.opts.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.opts = next.Clone()
	return nil
}

// Options returns a copy of the current options.
func (s *Store) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Clone()
}

func (s *Store) SetOutputDir(dir string) {
	s.mu.Lock()
	s.outputDir = dir
	s.mu.Unlock()
}

func (s *Store) OutputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputDir
}

// SetFormat and the setters below are shorthands for Update.
func (s *Store) SetFormat(f Format) error {
	return s.Update(func(o *Options) { o.Format = f })
}

func (s *Store) SetQuality(q int) error {
	return s.Update(func(o *Options) { o.Quality = q })
}

func (s *Store) SetCompression(c Compression) error {
	return s.Update(func(o *Options) { o.Compression = c })
}

// SetResize sets both dimensions; pass nil to keep the source size along
// that axis.
func (s *Store) SetResize(width, height *int) error {
	return s.Update(func(o *Options) {
		o.ResizeWidth = width
		o.ResizeHeight = height
	})
}

func (s *Store) SetKeepMetadata(keep bool) error {
	return s.Update(func(o *Options) { o.KeepMetadata = keep })
}
