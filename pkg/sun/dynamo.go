package sun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// dynamoBatchMax is DynamoDB's BatchWriteItem limit.
const dynamoBatchMax = 25

// DynamoSun stores a collection's records in one DynamoDB table, one item
// per record with partition key "<collection>#<key>" and the record
// marshaled under "doc". Several collections can share a table.
type DynamoSun struct {
	client    *dynamodb.Client
	table     string
	name      string
	schema    *multiverse.LocalSchema
	batchSize int
	log       *zap.Logger
}

// NewDynamoSun creates a DynamoDB-backed collection and verifies the table
// exists.
func NewDynamoSun(name string, schema *multiverse.LocalSchema, cfg multiverse.DynamoSunConfig, batchSize int, log *zap.Logger) (*DynamoSun, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.Table)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.Table, err)
	}

	return &DynamoSun{
		client:    client,
		table:     cfg.Table,
		name:      name,
		schema:    schema,
		batchSize: batchSize,
		log:       log,
	}, nil
}

func (s *DynamoSun) Name() string                    { return s.name }
func (s *DynamoSun) Schema() *multiverse.LocalSchema { return s.schema }
func (s *DynamoSun) BatchSize() int                  { return s.batchSize }
func (s *DynamoSun) IsAsync() bool                   { return true }

func (s *DynamoSun) partitionKey(key string) string {
	return s.name + "#" + key
}

func (s *DynamoSun) recordKey(pk string) string {
	return strings.TrimPrefix(pk, s.name+"#")
}

func (s *DynamoSun) item(key string, rec multiverse.Record) (map[string]types.AttributeValue, error) {
	doc, err := attributevalue.Marshal(map[string]interface{}(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	return map[string]types.AttributeValue{
		"pk":  &types.AttributeValueMemberS{Value: s.partitionKey(key)},
		"doc": doc,
	}, nil
}

func decodeItem(item map[string]types.AttributeValue) (multiverse.Record, error) {
	doc, ok := item["doc"]
	if !ok {
		return nil, fmt.Errorf("item is missing its doc attribute")
	}
	var rec map[string]interface{}
	if err := attributevalue.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return multiverse.Record(rec), nil
}

func (s *DynamoSun) Get(ctx context.Context, key string) (multiverse.Record, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: s.partitionKey(key)},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	rec, err := decodeItem(out.Item)
	if err != nil {
		return nil, false, fmt.Errorf("key %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *DynamoSun) Set(ctx context.Context, key string, rec multiverse.Record) error {
	item, err := s.item(key, rec)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *DynamoSun) Has(ctx context.Context, key string) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

func (s *DynamoSun) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: s.partitionKey(key)},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *DynamoSun) Count(ctx context.Context) (int, error) {
	total := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			Select:                    types.SelectCount,
			FilterExpression:          aws.String("begins_with(pk, :p)"),
			ExpressionAttributeValues: s.prefixValues(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count collection %s: %w", s.name, err)
		}
		total += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoSun) prefixValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":p": &types.AttributeValueMemberS{Value: s.name + "#"},
	}
}

func (s *DynamoSun) GetMany(ctx context.Context, keys []string) (map[string]multiverse.Record, error) {
	out := make(map[string]multiverse.Record, len(keys))
	for _, key := range keys {
		rec, found, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = rec
		}
	}
	return out, nil
}

func (s *DynamoSun) SetMany(ctx context.Context, recs map[string]multiverse.Record) error {
	requests := make([]types.WriteRequest, 0, len(recs))
	for key, rec := range recs {
		item, err := s.item(key, rec)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(requests); start += dynamoBatchMax {
		end := start + dynamoBatchMax
		if end > len(requests) {
			end = len(requests)
		}
		pending := map[string][]types.WriteRequest{s.table: requests[start:end]}
		for len(pending[s.table]) > 0 {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch write %d records: %w", len(recs), err)
			}
			pending = out.UnprocessedItems
		}
	}
	s.log.Debug("dynamodb batch set", zap.String("collection", s.name), zap.Int("records", len(recs)))
	return nil
}

func (s *DynamoSun) Find(ctx context.Context, match func(rec multiverse.Record) bool) ([]multiverse.KeyedRecord, error) {
	cursor, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []multiverse.KeyedRecord
	for {
		batch, done, err := cursor.Next(ctx, 256)
		if err != nil {
			return nil, err
		}
		for _, kr := range batch {
			if match(kr.Record) {
				out = append(out, kr)
			}
		}
		if done {
			return out, nil
		}
	}
}

// Mutate is copy-on-write over a get/put pair; no conditional expression
// guards the window, matching the single-writer assumption.
func (s *DynamoSun) Mutate(ctx context.Context, key string, fn multiverse.MutateFunc) (multiverse.Record, error) {
	stored, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	result, action := fn(multiverse.CloneRecord(stored), found)
	switch action {
	case multiverse.MutateSet:
		if result == nil {
			return nil, fmt.Errorf("mutate of %q returned MutateSet with a nil record", key)
		}
		if err := s.Set(ctx, key, result); err != nil {
			return nil, err
		}
		return result, nil
	case multiverse.MutateDelete:
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	case multiverse.MutateNoop:
		return stored, nil
	default:
		return nil, fmt.Errorf("mutate of %q returned unknown action %d", key, action)
	}
}

func (s *DynamoSun) Values(ctx context.Context) (multiverse.Cursor, error) {
	return &dynamoCursor{sun: s}, nil
}

type dynamoCursor struct {
	sun      *DynamoSun
	startKey map[string]types.AttributeValue
	done     bool
}

func (c *dynamoCursor) Next(ctx context.Context, batchSize int) ([]multiverse.KeyedRecord, bool, error) {
	if c.done {
		return nil, true, nil
	}
	if batchSize <= 0 {
		batchSize = multiverse.DefaultBatchSize
	}

	out, err := c.sun.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(c.sun.table),
		FilterExpression:          aws.String("begins_with(pk, :p)"),
		ExpressionAttributeValues: c.sun.prefixValues(),
		Limit:                     aws.Int32(int32(batchSize)),
		ExclusiveStartKey:         c.startKey,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan collection %s: %w", c.sun.name, err)
	}
	c.startKey = out.LastEvaluatedKey
	if c.startKey == nil {
		c.done = true
	}

	records := make([]multiverse.KeyedRecord, 0, len(out.Items))
	for _, item := range out.Items {
		pkAttr, ok := item["pk"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		rec, err := decodeItem(item)
		if err != nil {
			return nil, false, fmt.Errorf("key %s: %w", pkAttr.Value, err)
		}
		records = append(records, multiverse.KeyedRecord{Key: c.sun.recordKey(pkAttr.Value), Record: rec})
	}
	return records, c.done, nil
}

func (c *dynamoCursor) Close() error {
	c.done = true
	return nil
}

// dynamoFactory builds DynamoDB suns from configuration.
type dynamoFactory struct{}

func (f *dynamoFactory) Type() string { return "dynamodb" }

func (f *dynamoFactory) Validate(cfg multiverse.SunConfig) error {
	if cfg.Type != "dynamodb" {
		return fmt.Errorf("invalid type for dynamodb factory: %s", cfg.Type)
	}
	if cfg.Dynamo.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.Dynamo.Table == "" {
		return fmt.Errorf("table is required")
	}
	return nil
}

func (f *dynamoFactory) Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error) {
	return NewDynamoSun(cfg.Collection, schema, cfg.Dynamo, cfg.BatchSize, deps.logger())
}

func init() {
	RegisterFactory(&dynamoFactory{})
}
