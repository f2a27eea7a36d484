package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AWSOptions selects the region and, for local emulators, the endpoint.
type AWSOptions struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig loads the default AWS config chain with opts applied.
func LoadAWSConfig(ctx context.Context, opts AWSOptions) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	loadOpts = append(loadOpts, config.WithRegion(opts.Region))

	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// Dynamo stores one item per profile in a DynamoDB table keyed by PK, with
// one string attribute per storage key.
type Dynamo struct {
	client    *dynamodb.Client
	tableName string
	profile   string
}

// NewDynamo returns a backend for profile in tableName.
func NewDynamo(client *dynamodb.Client, tableName, profile string) *Dynamo {
	return &Dynamo{client: client, tableName: tableName, profile: profile}
}

func (d *Dynamo) pk() string {
	return "PROFILE#" + d.profile
}

func (d *Dynamo) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: d.pk()},
	}
}

func (d *Dynamo) Read(ctx context.Context, key string) (string, bool, error) {
	projection := "#k"
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                &d.tableName,
		Key:                      d.itemKey(),
		ProjectionExpression:     &projection,
		ExpressionAttributeNames: map[string]string{"#k": key},
	})
	if err != nil {
		return "", false, fmt.Errorf("GetItem: %w", err)
	}

	if out.Item == nil {
		return "", false, nil
	}

	attr, ok := out.Item[key]
	if !ok {
		return "", false, nil
	}
	sv, ok := attr.(*types.AttributeValueMemberS)
	if !ok {
		return "", false, fmt.Errorf("attribute %s is not a string", key)
	}
	return sv.Value, true, nil
}

func (d *Dynamo) Write(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	updateExpr := "SET #k = :v, updatedAt = :now, createdAt = if_not_exists(createdAt, :now)"

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                &d.tableName,
		Key:                      d.itemKey(),
		UpdateExpression:         &updateExpr,
		ExpressionAttributeNames: map[string]string{"#k": key},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":   &types.AttributeValueMemberS{Value: value},
			":now": &types.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		return fmt.Errorf("UpdateItem: %w", err)
	}

	return nil
}

// deleteItem removes the profile's item.
func (d *Dynamo) deleteItem(ctx context.Context) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.tableName,
		Key:       d.itemKey(),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem: %w", err)
	}

	return nil
}
