package server

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ledgerchat/internal/model"
)

// MongoStore persists the ledger in mongo for dev deployments that
// should survive restarts.
type MongoStore struct {
	messages *mongo.Collection
	images   *mongo.Collection
	profiles *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		messages: db.Collection("messages"),
		images:   db.Collection("images"),
		profiles: db.Collection("profiles"),
		counters: db.Collection("counters"),
	}
}

// nextSeq atomically increments a named counter; ids stay monotonic
// across server restarts.
func (s *MongoStore) nextSeq(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Value, nil
}

func (s *MongoStore) Append(ctx context.Context, m model.Message) (model.Message, error) {
	id, err := s.nextSeq(ctx, "message_id")
	if err != nil {
		return model.Message{}, err
	}
	m.ID = id

	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

func (s *MongoStore) Page(ctx context.Context, page, pageSize int) (model.Page, error) {
	cursor, err := s.messages.Find(ctx, bson.M{})
	if err != nil {
		return model.Page{}, err
	}
	defer cursor.Close(ctx)

	var ordered []model.Message
	if err := cursor.All(ctx, &ordered); err != nil {
		return model.Page{}, err
	}
	sort.Slice(ordered, func(i, j int) bool {
		return model.Before(ordered[i], ordered[j])
	})

	return paginate(ordered, page, pageSize), nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.messages.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *MongoStore) PutImage(ctx context.Context, data []byte) (int64, error) {
	ref, err := s.nextSeq(ctx, "image_ref")
	if err != nil {
		return 0, err
	}
	_, err = s.images.InsertOne(ctx, bson.M{"_id": ref, "data": data})
	return ref, err
}

func (s *MongoStore) GetImage(ctx context.Context, ref int64) ([]byte, error) {
	var doc struct {
		Data []byte `bson:"data"`
	}
	err := s.images.FindOne(ctx, bson.M{"_id": ref}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *MongoStore) GetProfile(ctx context.Context, clientID string) (*model.Profile, error) {
	var doc struct {
		Profile model.Profile `bson:"profile"`
	}
	err := s.profiles.FindOne(ctx, bson.M{"_id": clientID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc.Profile, nil
}

func (s *MongoStore) PutProfile(ctx context.Context, clientID string, p model.Profile) error {
	_, err := s.profiles.UpdateOne(
		ctx,
		bson.M{"_id": clientID},
		bson.M{"$set": bson.M{"profile": p}},
		options.Update().SetUpsert(true),
	)
	return err
}
