package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ScanAll exhausts a full-table Scan filtered to rows whose SK begins with skPrefix, invoking visit once per page.
// This is the only Scan in the package; every hot-path access goes through queryByPartition/queryIndex instead.
// It serves the guild ranking aggregation job (hourly) and the table-wide quest completion sweep
// (QuestRepository.ScanAllActive), both of which run off the request path and need every matching row in the table
// rather than a bounded partition.
func (c *Client) ScanAll(ctx context.Context, table, skPrefix string, visit func([]map[string]types.AttributeValue) error) error {
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String("begins_with(SK, :skPrefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":skPrefix": &types.AttributeValueMemberS{Value: skPrefix}},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return fmt.Errorf("scan table %q: %w", table, err)
		}

		if err := visit(out.Items); err != nil {
			return err
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}
