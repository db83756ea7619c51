package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"homeinspect/internal/core"
	"homeinspect/internal/metadata"
)

// fakeDB keeps items in insertion order and evaluates the handful of
// expressions the store issues.
type fakeDB struct {
	items   []map[string]types.AttributeValue
	queries []*dynamodb.QueryInput
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDB) indexOf(k map[string]types.AttributeValue) int {
	for i, it := range f.items {
		if str(it["PK"]) == str(k["PK"]) && str(it["SK"]) == str(k["SK"]) {
			return i
		}
	}
	return -1
}

func (f *fakeDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.indexOf(in.Item) >= 0 {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if i := f.indexOf(in.Key); i >= 0 {
		return &dynamodb.GetItemOutput{Item: f.items[i]}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	i := f.indexOf(in.Key)
	if i < 0 {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	v := in.ExpressionAttributeValues
	var out []map[string]types.AttributeValue
	for _, it := range f.items {
		if str(it["PK"]) != str(v[":pk"]) || !strings.HasPrefix(str(it["SK"]), str(v[":sk"])) {
			continue
		}
		ts := str(it["timestamp"])
		if from, ok := v[":from"]; ok && ts < str(from) {
			continue
		}
		if to, ok := v[":to"]; ok && ts > str(to) {
			continue
		}
		if item, ok := v[":item"]; ok && str(it["item_type"]) != str(item) {
			continue
		}
		out = append(out, it)
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := New(db, "uploads")
	at := time.Date(2024, 3, 15, 23, 59, 59, 999e6, time.UTC)

	in := core.UploadRecord{
		OwnerID:     "u1",
		ItemType:    "Home roof",
		StorageKey:  "Home roof-1710547199999-a.jpg",
		PublicURL:   "https://b/Home%20roof-1710547199999-a.jpg",
		ContentType: "image/jpeg",
		Location:    &core.Location{Latitude: 45.1, Longitude: 9.2},
		Timestamp:   at,
	}
	saved, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected ulid id")
	}
	if got := str(db.items[0]["PK"]); got != "USER#u1" {
		t.Fatalf("PK = %q", got)
	}

	got, err := s.Get(ctx, "u1", saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Timestamp.Equal(at) || got.Location == nil || got.Location.Longitude != 9.2 || got.StorageKey != in.StorageKey {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := s.Get(ctx, "u2", saved.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
}

func TestStoreListBoundsAndOrder(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := New(db, "uploads")
	cal := core.NewCalendar(time.UTC)
	p := core.Period{Year: 2024, Month: time.March, Half: core.FirstHalf}
	b := cal.BoundsOf(p)

	first, _ := s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Thermostat", Timestamp: b.Start})
	second, _ := s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Thermostat", Timestamp: b.End})
	_, _ = s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Thermostat", Timestamp: b.End.Add(time.Millisecond)})

	got, err := s.List(ctx, metadata.Query{OwnerID: "u1"}.InBounds(b))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("expected both boundary records in insertion order, got %+v", got)
	}
	q := db.queries[len(db.queries)-1]
	if q.FilterExpression == nil || *q.FilterExpression != "#ts >= :from AND #ts <= :to" {
		t.Fatalf("unexpected filter %v", q.FilterExpression)
	}

	all, _ := s.List(ctx, metadata.Query{OwnerID: "u1", ItemType: "Home roof"})
	if len(all) != 0 {
		t.Fatalf("item filter ignored: %+v", all)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := New(&fakeDB{}, "uploads")
	r, _ := s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Thermostat", Timestamp: time.Now()})

	if err := s.Delete(ctx, "u1", r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", r.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
