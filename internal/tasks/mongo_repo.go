package tasks

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tasksCollection    = "tasks"
	countersCollection = "counters"
)

type MongoRepo struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		coll:     db.Collection(tasksCollection),
		counters: db.Collection(countersCollection),
	}
}

// mongoTask adds the insertion sequence that breaks created_at ties.
type mongoTask struct {
	Task `bson:",inline"`
	Seq  int64 `bson:"seq"`
}

// nextSeq atomically bumps the tasks counter document.
func (r *MongoRepo) nextSeq(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: tasksCollection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next task seq: %w", err)
	}
	return doc.Seq, nil
}

// EnsureIndexes creates the owner and (owner, status) listing indexes.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}

func ownedFilter(owner, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "owner", Value: owner}}
}

func (r *MongoRepo) Insert(ctx context.Context, t Task) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, mongoTask{Task: t, Seq: seq}); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *MongoRepo) FindOwned(ctx context.Context, owner, id string) (Task, error) {
	var t Task
	err := r.coll.FindOne(ctx, ownedFilter(owner, id)).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

func (r *MongoRepo) ListOwned(ctx context.Context, owner string, status *Status) ([]Task, error) {
	filter := bson.D{{Key: "owner", Value: owner}}
	if status != nil {
		filter = append(filter, bson.E{Key: "status", Value: string(*status)})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := []Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (r *MongoRepo) UpdateOwned(ctx context.Context, owner, id string, p Patch) (Task, error) {
	if p.IsEmpty() {
		return r.FindOwned(ctx, owner, id)
	}

	set := bson.D{}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *p.Description})
	}
	if !p.ClearDueDate && p.DueDate != nil {
		set = append(set, bson.E{Key: "due_date", Value: *p.DueDate})
	}
	if p.Priority != nil {
		set = append(set, bson.E{Key: "priority", Value: string(*p.Priority)})
	}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*p.Status)})
	}

	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if p.ClearDueDate {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "due_date", Value: ""}}})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t Task
	err := r.coll.FindOneAndUpdate(ctx, ownedFilter(owner, id), update, opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *MongoRepo) DeleteOwned(ctx context.Context, owner, id string) error {
	res, err := r.coll.DeleteOne(ctx, ownedFilter(owner, id))
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Dates are stored as YYYY-MM-DD strings.
func (d Date) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.String())
}

func (d *Date) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("due_date: unexpected bson type %s", t)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
