package store

// queryOptions holds the read-consistency and ordering knobs for QueryByPartition/QueryIndex/GetByKey.
type queryOptions struct {
	strong    bool
	ascending bool
}

// QueryOption customizes a single read operation.
type QueryOption func(*queryOptions)

// Strong requests a strongly consistent read (ConsistentRead: true). Default is eventually consistent, per spec.md
// §4.2's allow-list of operations that opt in (login-attempt counters, version-conflict re-reads).
func Strong() QueryOption {
	return func(o *queryOptions) { o.strong = true }
}

// Descending reverses the default ascending sort-key order (ScanIndexForward: false), used for "most recent first"
// listings such as message history.
func Descending() QueryOption {
	return func(o *queryOptions) { o.ascending = false }
}

func resolveOptions(opts []QueryOption) queryOptions {
	o := queryOptions{ascending: true}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
