// Package dynamo stores upload records in a single DynamoDB table keyed by
// owner (PK) and a time-ordered ULID (SK).
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	"homeinspect/internal/core"
	"homeinspect/internal/metadata"
)

const skPrefix = "UPLOAD#"

// API is the subset of the DynamoDB client the store calls.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store wraps a DynamoDB client and table name.
type Store struct {
	DB    API
	Table string
}

var _ metadata.Store = (*Store)(nil)

func New(db API, table string) *Store {
	return &Store{DB: db, Table: table}
}

// NewClient builds a DynamoDB client, honouring a custom endpoint for local
// emulators.
func NewClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

type item struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	ID          string   `dynamodbav:"id"`
	OwnerID     string   `dynamodbav:"owner_id"`
	ItemType    string   `dynamodbav:"item_type"`
	StorageKey  string   `dynamodbav:"storage_key"`
	PublicURL   string   `dynamodbav:"public_url"`
	ContentType string   `dynamodbav:"content_type,omitempty"`
	Latitude    *float64 `dynamodbav:"latitude,omitempty"`
	Longitude   *float64 `dynamodbav:"longitude,omitempty"`
	Timestamp   string   `dynamodbav:"timestamp"`
}

// MakeKeys constructs the partition and sort keys for a record.
func MakeKeys(ownerID, id string) (pk, sk string) {
	return "USER#" + ownerID, skPrefix + id
}

func toItem(r core.UploadRecord) item {
	pk, sk := MakeKeys(r.OwnerID, r.ID)
	it := item{
		PK:          pk,
		SK:          sk,
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ItemType:    string(r.ItemType),
		StorageKey:  r.StorageKey,
		PublicURL:   r.PublicURL,
		ContentType: r.ContentType,
		Timestamp:   formatTime(r.Timestamp),
	}
	if r.Location != nil {
		lat, lng := r.Location.Latitude, r.Location.Longitude
		it.Latitude, it.Longitude = &lat, &lng
	}
	return it
}

func (it item) record() (core.UploadRecord, error) {
	ts, err := time.Parse(metadata.TimestampLayout, it.Timestamp)
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("parse timestamp %q: %w", it.Timestamp, err)
	}
	r := core.UploadRecord{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		ItemType:    core.ChecklistItem(it.ItemType),
		StorageKey:  it.StorageKey,
		PublicURL:   it.PublicURL,
		ContentType: it.ContentType,
		Timestamp:   ts,
	}
	if it.Latitude != nil && it.Longitude != nil {
		r.Location = &core.Location{Latitude: *it.Latitude, Longitude: *it.Longitude}
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(metadata.TimestampLayout)
}

// Insert assigns a ULID so sort-key order follows insertion order, then
// writes the item, refusing to overwrite an existing one.
func (s *Store) Insert(ctx context.Context, r core.UploadRecord) (core.UploadRecord, error) {
	r.ID = ulid.Make().String()
	av, err := attributevalue.MarshalMap(toItem(r))
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("put record: %w", err)
	}
	return r, nil
}

// List queries the owner's partition, filtering by timestamp and item type.
func (s *Store) List(ctx context.Context, q metadata.Query) ([]core.UploadRecord, error) {
	pk, _ := MakeKeys(q.OwnerID, "")
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: pk},
		":sk": &types.AttributeValueMemberS{Value: skPrefix},
	}
	names := map[string]string{}
	var filters []string
	if !q.From.IsZero() {
		names["#ts"] = "timestamp"
		values[":from"] = &types.AttributeValueMemberS{Value: formatTime(q.From)}
		filters = append(filters, "#ts >= :from")
	}
	if !q.To.IsZero() {
		names["#ts"] = "timestamp"
		values[":to"] = &types.AttributeValueMemberS{Value: formatTime(q.To)}
		filters = append(filters, "#ts <= :to")
	}
	if q.ItemType != "" {
		values[":item"] = &types.AttributeValueMemberS{Value: string(q.ItemType)}
		filters = append(filters, "item_type = :item")
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Table),
		KeyConditionExpression:    aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(true),
	}
	if len(filters) > 0 {
		in.FilterExpression = aws.String(strings.Join(filters, " AND "))
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}

	var out []core.UploadRecord
	p := dynamodb.NewQueryPaginator(s.DB, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query records: %w", err)
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		for _, it := range items {
			r, err := it.record()
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (core.UploadRecord, error) {
	out, err := s.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key:       key(ownerID, id),
	})
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("get record: %w", err)
	}
	if len(out.Item) == 0 {
		return core.UploadRecord{}, metadata.ErrNotFound
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return core.UploadRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return it.record()
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	_, err := s.DB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.Table),
		Key:                 key(ownerID, id),
		ConditionExpression: aws.String("attribute_exists(SK)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return metadata.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func key(ownerID, id string) map[string]types.AttributeValue {
	pk, sk := MakeKeys(ownerID, id)
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
