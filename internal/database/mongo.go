package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDriver struct {
	client *mongo.Client
	db     *mongo.Database
}

type MongoRow struct {
	raw bson.Raw
}

func (mr *MongoRow) Scan(dest interface{}) error {
	return bson.Unmarshal(mr.raw, dest)
}

// NewMongoDriver connects to dsn and scopes every collection to database.
func NewMongoDriver(ctx context.Context, dsn, database string) (*MongoDriver, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, err
	}
	return &MongoDriver{client: client, db: client.Database(database)}, nil
}

func (md *MongoDriver) Name() string {
	return "mongo"
}

func (md *MongoDriver) Ping(ctx context.Context) error {
	return md.client.Ping(ctx, nil)
}

func (md *MongoDriver) Close(ctx context.Context) error {
	return md.client.Disconnect(ctx)
}

// EnsureCollection is a no-op; MongoDB creates collections on first write.
func (md *MongoDriver) EnsureCollection(ctx context.Context, collection string) error {
	return nil
}

func (md *MongoDriver) EnsureUnique(ctx context.Context, collection, field string) error {
	_, err := md.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return err
}

func (md *MongoDriver) Insert(ctx context.Context, collection string, doc Fields) error {
	_, err := md.db.Collection(collection).InsertOne(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

func (md *MongoDriver) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Row, error) {
	findOpts := options.Find()
	if opts.Sort != "" {
		dir := 1
		if opts.Desc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.Sort, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	cursor, err := md.db.Collection(collection).Find(ctx, mongoFilter(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []Row
	for cursor.Next(ctx) {
		raw := make(bson.Raw, len(cursor.Current))
		copy(raw, cursor.Current)
		rows = append(rows, &MongoRow{raw: raw})
	}
	return rows, cursor.Err()
}

func (md *MongoDriver) Update(ctx context.Context, collection string, filter Filter, patch Fields) (int64, error) {
	res, err := md.db.Collection(collection).UpdateOne(ctx, mongoFilter(filter), bson.M{"$set": bson.M(patch)})
	if mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (md *MongoDriver) Delete(ctx context.Context, collection string, filter Filter, many bool) (int64, error) {
	coll := md.db.Collection(collection)
	var (
		res *mongo.DeleteResult
		err error
	)
	if many {
		res, err = coll.DeleteMany(ctx, mongoFilter(filter))
	} else {
		res, err = coll.DeleteOne(ctx, mongoFilter(filter))
	}
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (md *MongoDriver) Drop(ctx context.Context, collection string) error {
	return md.db.Collection(collection).Drop(ctx)
}

// mongoFilter translates a Filter into a query document. Multiple
// conditions on the same field are joined with $and.
func mongoFilter(filter Filter) bson.M {
	if len(filter) == 0 {
		return bson.M{}
	}
	clauses := make([]bson.M, 0, len(filter))
	for _, c := range filter {
		switch c.Op {
		case OpEq:
			clauses = append(clauses, bson.M{c.Field: c.Value})
		case OpIn:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$in": c.Value}})
		case OpLte:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$lte": c.Value}})
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}
