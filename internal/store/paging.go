package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Pagination defaults per spec.md §4.2: default page size 25, maximum 100.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Page describes a single query request's paging parameters. Cursor is the opaque string previously returned by
// NextCursor, or empty to start from the beginning of the partition.
type Page struct {
	Limit  int
	Cursor string
}

// Normalize clamps Limit to [1, MaxPageSize], defaulting to DefaultPageSize when unset.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// decodeCursor turns an opaque cursor string back into a DynamoDB LastEvaluatedKey map. An empty cursor yields a nil
// map, meaning "start of partition".
func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var plain map[string]string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	av, err := attributevalue.MarshalMap(plain)
	if err != nil {
		return nil, fmt.Errorf("marshal cursor key: %w", err)
	}
	return av, nil
}

// encodeCursor turns a DynamoDB LastEvaluatedKey map into an opaque cursor string. Returns "" when key is empty,
// meaning there are no further pages.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	var plain map[string]string
	if err := attributevalue.UnmarshalMap(key, &plain); err != nil {
		return "", fmt.Errorf("unmarshal last evaluated key: %w", err)
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
