package clients

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"otr_messaging/internal/model"
)

type (
	// Client is one registered device as the relay sees it: who owns it,
	// which topics it participates in, and its current prekey bundle.
	Client struct {
		ClientID model.ClientID  `bson:"client_id"`
		UserID   model.UserID    `bson:"user_id"`
		Name     string          `bson:"name"`
		Topics   []model.TopicID `bson:"topics"`
		Prekey   *model.Prekey   `bson:"prekey,omitempty"`
	}

	// Repo is the relay's client registry.
	Repo struct {
		collection *mongo.Collection
	}
)

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{
		collection: db.Collection("clients"),
	}
}

func (r *Repo) GetByClientID(ctx context.Context, id model.ClientID) (*Client, error) {
	filter := bson.M{
		"client_id": id,
	}

	var client Client
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Upsert registers or refreshes a client record, keyed by client_id.
func (r *Repo) Upsert(ctx context.Context, client *Client) error {
	filter := bson.M{
		"client_id": client.ClientID,
	}
	update := bson.M{
		"$set": bson.M{
			"user_id": client.UserID,
			"name":    client.Name,
		},
		"$setOnInsert": bson.M{
			"topics": []model.TopicID{},
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// SetPrekey replaces the client's published prekey bundle.
func (r *Repo) SetPrekey(ctx context.Context, id model.ClientID, prekey *model.Prekey) error {
	filter := bson.M{
		"client_id": id,
	}
	update := bson.M{
		"$set": bson.M{
			"prekey": prekey,
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// JoinTopic adds the topic to the client's membership set.
func (r *Repo) JoinTopic(ctx context.Context, id model.ClientID, topicID model.TopicID) error {
	filter := bson.M{
		"client_id": id,
	}
	update := bson.M{
		"$addToSet": bson.M{
			"topics": topicID,
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByTopic returns every client participating in the topic.
func (r *Repo) ListByTopic(ctx context.Context, topicID model.TopicID) ([]Client, error) {
	filter := bson.M{
		"topics": topicID,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []Client
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetUserName returns the display name recorded for a user, or "" when the
// user has no registered client.
func (r *Repo) GetUserName(ctx context.Context, userID model.UserID) (string, error) {
	filter := bson.M{
		"user_id": userID,
	}

	var client Client
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return client.Name, nil
}
