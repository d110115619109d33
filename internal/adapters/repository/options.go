package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithStreams registers the streams the store accepts.
func WithStreams(streams ...string) Option {
	return func(s *MemoryStore) {
		for _, name := range streams {
			if name == "" {
				continue
			}
			if _, ok := s.streams[name]; !ok {
				s.streams[name] = nil
			}
		}
	}
}
