package store

import "context"

// This file is the public surface of the Core Store named in spec.md §4.2: Put, GetByKey, QueryByPartition,
// QueryIndex, UpdateWithVersion, TransactWrite (transact.go), DeleteCascade (cascade.go). Entity repositories
// (user.go, goal.go, ...) are thin typed wrappers over these.

// Put writes item unconditionally.
func (c *Client) Put(ctx context.Context, table string, item any) error {
	return c.put(ctx, table, item)
}

// PutIfNotExists writes item only if no row already exists at its key. Returns ErrVersionConflict on collision.
func (c *Client) PutIfNotExists(ctx context.Context, table string, item any) error {
	return c.putIfNotExists(ctx, table, item)
}

// GetByKey fetches a single item by composite key into out. Returns ErrNotFound when absent.
func (c *Client) GetByKey(ctx context.Context, table string, key Key, out any, opts ...QueryOption) error {
	o := resolveOptions(opts)
	return c.getByKey(ctx, table, key, out, o.strong)
}

// Delete removes a single item unconditionally.
func (c *Client) Delete(ctx context.Context, table string, key Key) error {
	return c.deleteByKey(ctx, table, key)
}

// QueryByPartition lists items sharing a partition key, optionally constrained by an SK prefix.
func (c *Client) QueryByPartition(ctx context.Context, table, pk, skPrefix string, page Page, opts ...QueryOption) (QueryResult, error) {
	o := resolveOptions(opts)
	return c.queryByPartition(ctx, table, pk, skPrefix, page, o.strong, o.ascending)
}

// QueryIndex lists items via a named GSI.
func (c *Client) QueryIndex(ctx context.Context, table, indexName, pkAttr, skAttr, partition, sortPrefix string, page Page, opts ...QueryOption) (QueryResult, error) {
	o := resolveOptions(opts)
	return c.queryIndex(ctx, table, indexName, pkAttr, skAttr, partition, sortPrefix, page, o.ascending)
}

// UpdateWithVersion performs the optimistic-concurrency conditional update described in version.go. buildUpdate
// returns the SET/REMOVE expression fragment (excluding the leading "SET"/trailing version clause), the
// ExpressionAttributeNames it references, and the raw (unmarshalled) ExpressionAttributeValues.
func (c *Client) UpdateWithVersion(ctx context.Context, table string, key Key, expectedVersion int64, buildUpdate func() (expr string, names map[string]string, values map[string]any, err error)) error {
	return c.updateWithVersion(ctx, table, key, expectedVersion, buildUpdate)
}
