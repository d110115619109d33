package ledger

type options struct {
	capacity int
}

// Option applies a configuration option to the InMemoryLedger.
type Option func(*options)

// WithInitialCapacity presizes the grant map.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
