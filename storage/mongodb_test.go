package storage

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TestMongoStoreInterfaceCompliance verifies MongoStore implements PasteStore interface at compile time
func TestMongoStoreInterfaceCompliance(t *testing.T) {
	var _ PasteStore = (*MongoStore)(nil)
	var _ Migrator = (*MongoStore)(nil)
}

func TestMongoStore_LiveFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &MongoStore{now: func() time.Time { return now }}

	filter := store.liveFilter(bson.M{"language": "go"})
	if filter["language"] != "go" {
		t.Errorf("liveFilter dropped existing criteria: %v", filter)
	}

	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected a two-branch $or, got %#v", filter["$or"])
	}
	never, ok := or[0].(bson.M)
	if !ok || never["expires_at"] != nil {
		t.Errorf("first branch should match pastes without expiry, got %#v", or[0])
	}
	future, ok := or[1].(bson.M)
	if !ok {
		t.Fatalf("second branch has unexpected type %T", or[1])
	}
	gt, ok := future["expires_at"].(bson.M)
	if !ok {
		t.Fatalf("second branch has no comparison: %#v", future)
	}
	if at, ok := gt["$gt"].(time.Time); !ok || !at.Equal(now) {
		t.Errorf("second branch should compare against now, got %#v", future)
	}
}

func TestRelatedFilter(t *testing.T) {
	tests := []struct {
		name      string
		excludeID int64
		wantNe    bool
	}{
		{"no exclusion", 0, false},
		{"excludes source paste", 42, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := relatedFilter("rust", tt.excludeID)
			if filter["language"] != "rust" {
				t.Errorf("expected language criterion, got %v", filter)
			}
			id, ok := filter["_id"].(bson.M)
			if ok != tt.wantNe {
				t.Fatalf("_id criterion present = %v, want %v", ok, tt.wantNe)
			}
			if ok && id["$ne"] != tt.excludeID {
				t.Errorf("expected $ne %d, got %v", tt.excludeID, id)
			}
		})
	}
}

func TestExpiredFilter(t *testing.T) {
	before := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	filter := expiredFilter(before)
	cond, ok := filter["expires_at"].(bson.M)
	if !ok {
		t.Fatalf("expected an expires_at condition, got %#v", filter)
	}
	if _, ok := cond["$ne"]; !ok || cond["$ne"] != nil {
		t.Errorf("pastes without expiry must be excluded, got %#v", cond)
	}
	lte, ok := cond["$lte"].(time.Time)
	if !ok || !lte.Equal(before) || lte.Location() != time.UTC {
		t.Errorf("expected $lte at %v in UTC, got %#v", before, cond["$lte"])
	}
}

func TestCounterUpdate(t *testing.T) {
	filter, update := counterUpdate()
	if filter["_id"] != pasteCounterKey {
		t.Errorf("counter filter should target %q, got %v", pasteCounterKey, filter)
	}
	inc, ok := update["$inc"].(bson.M)
	if !ok || inc["seq"] != 1 {
		t.Errorf("counter update should increment seq by one, got %#v", update)
	}
}

func TestMapInsertError(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	other := errors.New("connection reset")

	if err := mapInsertError(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate key should map to ErrDuplicateID, got %v", err)
	}
	if err := mapInsertError(other); err != other {
		t.Errorf("other errors should pass through, got %v", err)
	}
}

func TestNewMongoStore_UnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed local port")
	}

	store, err := NewMongoStore("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200", "codesnap_test")
	if err == nil {
		_ = store.Close()
		t.Fatal("expected an error for an unreachable server")
	}
	if store != nil {
		t.Errorf("expected no store on failure, got %#v", store)
	}
}
