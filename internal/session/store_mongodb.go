package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mediaqa/internal/core"
)

type mongoRunDocument struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	Name      string         `bson:"name"`
	CreatedAt int64          `bson:"created_at"`
	UpdatedAt int64          `bson:"updated_at"`
	Messages  []mongoMessage `bson:"messages"`
}

type mongoMessage struct {
	Role       string          `bson:"role"`
	Content    string          `bson:"content"`
	Name       string          `bson:"name,omitempty"`
	ToolCallID string          `bson:"tool_call_id,omitempty"`
	ToolCalls  []mongoToolCall `bson:"tool_calls,omitempty"`
}

type mongoToolCall struct {
	ID        string `bson:"id"`
	Type      string `bson:"type"`
	Name      string `bson:"name"`
	Arguments string `bson:"arguments"`
}

func toMongoMessages(msgs []core.Message) []mongoMessage {
	out := make([]mongoMessage, 0, len(msgs))
	for _, m := range msgs {
		mm := mongoMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			mm.ToolCalls = append(mm.ToolCalls, mongoToolCall{
				ID: tc.ID, Type: tc.Type, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
		out = append(out, mm)
	}
	return out
}

func fromMongoMessages(msgs []mongoMessage) []core.Message {
	out := make([]core.Message, 0, len(msgs))
	for _, mm := range msgs {
		m := core.Message{Role: mm.Role, Content: mm.Content, Name: mm.Name, ToolCallID: mm.ToolCallID}
		for _, tc := range mm.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, core.ToolCall{
				ID: tc.ID, Type: tc.Type,
				Function: core.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, m)
	}
	return out
}

// MongoDBStore stores runs in a MongoDB collection.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database, collection string) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	collection, err := validateTableName(collection)
	if err != nil {
		return nil, err
	}

	coll := database.Collection(collection)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create %s indexes: %w", collection, err)
	}

	return &MongoDBStore{collection: coll}, nil
}

// Create inserts a new run.
func (s *MongoDBStore) Create(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	doc := mongoRunDocument{
		ID:        run.ID,
		UserID:    run.UserID,
		Name:      run.Name,
		CreatedAt: run.CreatedAt.UnixNano(),
		UpdatedAt: run.UpdatedAt.UnixNano(),
		Messages:  toMongoMessages(run.Messages),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (s *MongoDBStore) Get(ctx context.Context, id string) (*Run, error) {
	var doc mongoRunDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &Run{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Name:      doc.Name,
		CreatedAt: time.Unix(0, doc.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, doc.UpdatedAt).UTC(),
		Messages:  fromMongoMessages(doc.Messages),
	}, nil
}

// ListRunIDs returns the user's run IDs ordered by created_at desc, id desc.
func (s *MongoDBStore) ListRunIDs(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"_id": 1})
	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode run document: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs cursor: %w", err)
	}
	return ids, nil
}

// AppendMessages pushes messages onto the run's message array.
func (s *MongoDBStore) AppendMessages(ctx context.Context, id string, msgs []core.Message) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": toMongoMessages(msgs)}},
			"$set":  bson.M{"updated_at": time.Now().UnixNano()},
		},
	)
	if err != nil {
		return fmt.Errorf("append run messages: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; Mongo client lifecycle is managed by storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
