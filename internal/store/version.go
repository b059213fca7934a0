package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxUpdateRetries bounds the retry loop in WithRetry; spec.md §4.2 requires callers of user-visible updates to
// retry up to 3 times with exponential backoff before surfacing conflict.version.
const maxUpdateRetries = 3

// updateWithVersion performs a conditional UpdateItem: the write only commits if the stored version attribute
// equals expectedVersion, and the new version is expectedVersion+1. buildUpdate supplies the SET/REMOVE expression
// for the mutated attributes (everything except PK/SK/version, which this function manages).
func (c *Client) updateWithVersion(ctx context.Context, table string, key Key, expectedVersion int64, buildUpdate func() (expr string, names map[string]string, values map[string]any, err error)) error {
	keyAV, err := key.av()
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	updateExpr, names, rawValues, err := buildUpdate()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}

	values, err := attributevalue.MarshalMap(rawValues)
	if err != nil {
		return fmt.Errorf("marshal update values: %w", err)
	}

	newVersion, err := attributevalue.Marshal(expectedVersion + 1)
	if err != nil {
		return fmt.Errorf("marshal new version: %w", err)
	}
	expectedAV, err := attributevalue.Marshal(expectedVersion)
	if err != nil {
		return fmt.Errorf("marshal expected version: %w", err)
	}

	if values == nil {
		values = map[string]types.AttributeValue{}
	}
	values[":newVersion"] = newVersion
	values[":expectedVersion"] = expectedAV

	fullExpr := fmt.Sprintf("%s, version = :newVersion", updateExpr)

	_, err = c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       keyAV,
		UpdateExpression:          aws.String(fullExpr),
		ConditionExpression:       aws.String("version = :expectedVersion"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update with version: %w", err)
	}
	return nil
}

// WithRetry retries op up to maxUpdateRetries times with jittered exponential backoff whenever it returns
// ErrVersionConflict, so that read-mutate-write callers can simply re-read and retry. Any other error, or exhausting
// the retry budget, is returned to the caller unchanged (the final attempt's ErrVersionConflict surfaces as
// conflict.version).
func WithRetry(ctx context.Context, op func() error) error {
	var lastErr error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt <= maxUpdateRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrVersionConflict) {
			return lastErr
		}
		if attempt == maxUpdateRetries {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return lastErr
}
