package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// QueryResult holds a page of items plus the cursor to fetch the next page, if any.
type QueryResult struct {
	Items      []map[string]types.AttributeValue
	NextCursor string
}

// queryByPartition runs a Query against table's base PK/SK, optionally constrained by an SK prefix (begins_with).
// Scans are never used in the hot path; every cross-partition access goes through this or queryIndex.
func (c *Client) queryByPartition(ctx context.Context, table, pk, skPrefix string, page Page, strong, ascending bool) (QueryResult, error) {
	page = page.Normalize()

	startKey, err := decodeCursor(page.Cursor)
	if err != nil {
		return QueryResult{}, err
	}

	keyCond := "PK = :pk"
	exprValues := map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: pk}}
	if skPrefix != "" {
		keyCond += " AND begins_with(SK, :skPrefix)"
		exprValues[":skPrefix"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	out, err := c.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: exprValues,
		Limit:                     aws.Int32(int32(page.Limit)),
		ExclusiveStartKey:         startKey,
		ConsistentRead:            aws.Bool(strong),
		ScanIndexForward:          aws.Bool(ascending),
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("query partition %q: %w", pk, err)
	}

	cursor, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return QueryResult{}, err
	}

	return QueryResult{Items: out.Items, NextCursor: cursor}, nil
}

// queryIndex runs a Query against a named GSI, partitioned by partition and optionally constrained by a sort-key
// prefix (begins_with on skAttr, the index's sort attribute, e.g. GSI1SK).
func (c *Client) queryIndex(ctx context.Context, table, indexName, pkAttr, skAttr, partition, sortPrefix string, page Page, ascending bool) (QueryResult, error) {
	page = page.Normalize()

	startKey, err := decodeCursor(page.Cursor)
	if err != nil {
		return QueryResult{}, err
	}

	keyCond := fmt.Sprintf("%s = :pk", pkAttr)
	exprValues := map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: partition}}
	if sortPrefix != "" {
		keyCond += fmt.Sprintf(" AND begins_with(%s, :skPrefix)", skAttr)
		exprValues[":skPrefix"] = &types.AttributeValueMemberS{Value: sortPrefix}
	}

	out, err := c.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: exprValues,
		Limit:                     aws.Int32(int32(page.Limit)),
		ExclusiveStartKey:         startKey,
		ScanIndexForward:          aws.Bool(ascending),
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("query index %q: %w", indexName, err)
	}

	cursor, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return QueryResult{}, err
	}

	return QueryResult{Items: out.Items, NextCursor: cursor}, nil
}
