package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// unmarshalInto is a thin wrapper around attributevalue.UnmarshalMap shared by every entity repository's list/query
// methods, kept in one place so the error message is consistent.
func unmarshalInto(item map[string]types.AttributeValue, out any) error {
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}
