package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// transactItemLimit is DynamoDB's hard cap on items per TransactWriteItems call, and therefore the cap on a single
// cascading-delete batch (spec.md §4.2).
const transactItemLimit = 25

// TransactItem is one operation within a TransactWrite call.
type TransactItem struct {
	Table  string
	Put    any  // non-nil for a Put operation
	Delete *Key // non-nil for a Delete operation

	// ConditionExpression, when set, is attached to the Put or Delete as a per-item condition (e.g. optimistic
	// concurrency or attribute_not_exists). ExpressionAttributeValues supplies the ":placeholders" it references.
	ConditionExpression       string
	ExpressionAttributeValues map[string]any
}

// TransactWrite commits up to transactItemLimit operations atomically: all succeed or none do. Returns
// ErrTooManyItems if len(items) exceeds the limit, and ErrVersionConflict if any per-item condition fails.
func (c *Client) TransactWrite(ctx context.Context, items []TransactItem) error {
	if len(items) == 0 {
		return nil
	}
	if len(items) > transactItemLimit {
		return ErrTooManyItems
	}

	txItems := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		var exprValues map[string]types.AttributeValue
		if len(item.ExpressionAttributeValues) > 0 {
			var err error
			exprValues, err = attributevalue.MarshalMap(item.ExpressionAttributeValues)
			if err != nil {
				return fmt.Errorf("marshal transact condition values: %w", err)
			}
		}

		switch {
		case item.Put != nil:
			av, err := attributevalue.MarshalMap(item.Put)
			if err != nil {
				return fmt.Errorf("marshal transact put item: %w", err)
			}
			put := &types.Put{TableName: aws.String(item.Table), Item: av}
			if item.ConditionExpression != "" {
				put.ConditionExpression = aws.String(item.ConditionExpression)
				put.ExpressionAttributeValues = exprValues
			}
			txItems = append(txItems, types.TransactWriteItem{Put: put})

		case item.Delete != nil:
			keyAV, err := item.Delete.av()
			if err != nil {
				return fmt.Errorf("marshal transact delete key: %w", err)
			}
			del := &types.Delete{TableName: aws.String(item.Table), Key: keyAV}
			if item.ConditionExpression != "" {
				del.ConditionExpression = aws.String(item.ConditionExpression)
				del.ExpressionAttributeValues = exprValues
			}
			txItems = append(txItems, types.TransactWriteItem{Delete: del})

		default:
			return fmt.Errorf("transact item has neither Put nor Delete set")
		}
	}

	_, err := c.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: txItems})
	if err != nil {
		var cancelErr *types.TransactionCanceledException
		if errors.As(err, &cancelErr) {
			for _, reason := range cancelErr.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return ErrVersionConflict
				}
			}
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}
