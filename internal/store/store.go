// Package store implements the single-table data-access core (C2): typed operations over the composite-key
// keyspace described in spec.md §3, backed by DynamoDB. Every entity repository in this module builds on the
// generic Client in this file; no caller issues raw DynamoDB requests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Sentinel errors returned by repository methods. Handlers translate these into apierrors kinds at the service
// boundary; the store package itself never imports apierrors, to keep the persistence layer free of HTTP concerns.
var (
	ErrNotFound        = errors.New("item not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrTooManyItems    = errors.New("cascading delete exceeds the 25-item transaction limit")
)

// Client wraps a DynamoDB client with the two tables the platform uses (the core table and the companion guild
// table) and provides the generic primitives every entity repository composes.
type Client struct {
	ddb        *dynamodb.Client
	CoreTable  string
	GuildTable string
}

// Connect builds a DynamoDB client from the process configuration, optionally pointed at a local endpoint for
// development, and verifies connectivity with a DescribeTable call against the core table.
func Connect(ctx context.Context, region, endpoint, coreTable, guildTable string) (*Client, error) {
	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	client := &Client{ddb: ddb, CoreTable: coreTable, GuildTable: guildTable}

	if _, err := ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(coreTable)}); err != nil {
		return nil, fmt.Errorf("describe core table: %w", err)
	}

	return client, nil
}

// Ping verifies connectivity to the core table, the same check Connect performs at startup.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.CoreTable)})
	return err
}

// Key identifies an item by its composite primary key.
type Key struct {
	PK string
	SK string
}

func (k Key) av() (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(map[string]string{"PK": k.PK, "SK": k.SK})
}

// put marshals item and writes it to table unconditionally.
func (c *Client) put(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = c.ddb.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(table), Item: av})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// putIfNotExists writes item only if no row already exists at its key, used for entities with natural uniqueness
// constraints (e.g. a user's email-derived lookup row).
func (c *Client) putIfNotExists(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrVersionConflict
		}
		return fmt.Errorf("put item if not exists: %w", err)
	}
	return nil
}

// getByKey fetches a single item by composite key into out. Returns ErrNotFound when absent.
func (c *Client) getByKey(ctx context.Context, table string, key Key, out any, strong bool) error {
	keyAV, err := key.av()
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	res, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            keyAV,
		ConsistentRead: aws.Bool(strong),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if res.Item == nil {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// deleteByKey removes a single item unconditionally. Missing keys are not an error.
func (c *Client) deleteByKey(ctx context.Context, table string, key Key) error {
	keyAV, err := key.av()
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	_, err = c.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(table), Key: keyAV})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
