package store

import (
	"context"
	"time"

	"unisell/server/internal/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection = "messages"
	usersCollection    = "users"
)

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Sender    primitive.ObjectID `bson:"sender"`
	Receiver  primitive.ObjectID `bson:"receiver"`
	Content   string             `bson:"content"`
	IsRead    bool               `bson:"isRead"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d messageDoc) toModel() models.Message {
	return models.Message{
		ID:         d.ID.Hex(),
		SenderID:   d.Sender.Hex(),
		ReceiverID: d.Receiver.Hex(),
		Content:    d.Content,
		IsRead:     d.IsRead,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	ProfilePhoto *string            `bson:"profilePhoto,omitempty"`
}

func oid(id string) (primitive.ObjectID, error) {
	v, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return v, nil
}

func oids(ids ...string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, len(ids))
	for i, id := range ids {
		v, err := oid(id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]models.Message, error) {
	defer cur.Close(ctx)

	var out []models.Message
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.toModel())
	}
	return out, cur.Err()
}

// Mongo stores messages in a collection shaped like the original mongoose model
type Mongo struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db, coll: db.Collection(messagesCollection)}
}

// EnsureIndexes creates the indexes the queries below rely on
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}}},
	})
	return errors.Wrap(err, "create message indexes")
}

func (s *Mongo) Create(ctx context.Context, msg *models.Message) error {
	ids, err := oids(msg.SenderID, msg.ReceiverID)
	if err != nil {
		return err
	}

	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		Sender:    ids[0],
		Receiver:  ids[1],
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if msg.ID != "" {
		if doc.ID, err = oid(msg.ID); err != nil {
			return err
		}
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	// BSON dates carry millisecond precision.
	doc.CreatedAt = doc.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert message")
	}

	stored := doc.toModel()
	stored.ClientID = msg.ClientID
	*msg = stored
	return nil
}

func pairFilter(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender": a, "receiver": b},
		bson.M{"sender": b, "receiver": a},
	}}
}

func (s *Mongo) FindBetween(ctx context.Context, a, b string, page Page) ([]models.Message, error) {
	ids, err := oids(a, b)
	if err != nil {
		return nil, err
	}

	filter := pairFilter(ids[0], ids[1])
	if page.Limit <= 0 && page.Before.IsZero() {
		cur, err := s.coll.Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
		if err != nil {
			return nil, errors.Wrap(err, "find thread")
		}
		msgs, err := decodeMessages(ctx, cur)
		return msgs, errors.Wrap(err, "decode thread")
	}

	if !page.Before.IsZero() {
		filter = bson.M{"$and": bson.A{filter, bson.M{"createdAt": bson.M{"$lt": page.Before}}}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find thread page")
	}
	msgs, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, errors.Wrap(err, "decode thread page")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Mongo) LatestPerCounterpart(ctx context.Context, userID string) ([]models.Message, error) {
	uid, err := oid(userID)
	if err != nil {
		return nil, err
	}

	newestFirst := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{bson.M{"sender": uid}, bson.M{"receiver": uid}}}}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender", uid}}, "$receiver", "$sender",
			}},
			"lastMessage": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$lastMessage"}}},
		{{Key: "$sort", Value: newestFirst}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate conversations")
	}
	msgs, err := decodeMessages(ctx, cur)
	return msgs, errors.Wrap(err, "decode conversations")
}

func (s *Mongo) UnreadBySender(ctx context.Context, userID string) (map[string]int64, error) {
	uid, err := oid(userID)
	if err != nil {
		return nil, err
	}

	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver": uid, "isRead": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$sender", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "aggregate unread counts")
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Sender primitive.ObjectID `bson:"_id"`
			Count  int64              `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode unread counts")
		}
		counts[row.Sender.Hex()] = row.Count
	}
	return counts, errors.Wrap(cur.Err(), "decode unread counts")
}

func (s *Mongo) MarkRead(ctx context.Context, counterpartID, userID string) (int64, error) {
	ids, err := oids(counterpartID, userID)
	if err != nil {
		return 0, err
	}

	res, err := s.coll.UpdateMany(ctx,
		bson.M{"receiver": ids[1], "sender": ids[0], "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark read")
	}
	return res.ModifiedCount, nil
}

func (s *Mongo) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// MongoDirectory reads accounts from the users collection
type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{coll: db.Collection(usersCollection)}
}

func (d *MongoDirectory) Exists(ctx context.Context, id string) (bool, error) {
	uid, err := oid(id)
	if err != nil {
		return false, nil
	}
	n, err := d.coll.CountDocuments(ctx, bson.M{"_id": uid}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "check account")
	}
	return n > 0, nil
}

// validOIDs converts the well-formed ids and skips the rest, which can
// never match a stored account.
func validOIDs(ids []string) []primitive.ObjectID {
	keys := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if v, err := oid(id); err == nil {
			keys = append(keys, v)
		}
	}
	return keys
}

func (d *MongoDirectory) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	keys := validOIDs(ids)
	if len(keys) == 0 {
		return out, nil
	}

	cur, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find account ids")
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&u); err != nil {
			return nil, errors.Wrap(err, "decode account id")
		}
		out[u.ID.Hex()] = true
	}
	return out, errors.Wrap(cur.Err(), "decode account ids")
}

func (d *MongoDirectory) Lookup(ctx context.Context, ids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(ids))

	keys := validOIDs(ids)
	if len(keys) == 0 {
		return out, nil
	}

	cur, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}},
		options.Find().SetProjection(bson.M{"name": 1, "profilePhoto": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find accounts")
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u userDoc
		if err := cur.Decode(&u); err != nil {
			return nil, errors.Wrap(err, "decode account")
		}
		out[u.ID.Hex()] = models.Account{ID: u.ID.Hex(), Name: u.Name, ProfilePhoto: u.ProfilePhoto}
	}
	return out, errors.Wrap(cur.Err(), "decode accounts")
}
