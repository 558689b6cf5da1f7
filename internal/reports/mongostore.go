package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps reports in the "reports" collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("reports")}
}

type locationDoc struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
	Address   string  `bson:"address,omitempty"`
}

type reportDoc struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty"`
	UserID             primitive.ObjectID  `bson:"userId"`
	Title              string              `bson:"title"`
	Description        string              `bson:"description"`
	PhotoURL           string              `bson:"photoUrl"`
	Location           locationDoc         `bson:"location"`
	Category           Category            `bson:"category"`
	Status             Status              `bson:"status"`
	AdminNotes         string              `bson:"adminNotes,omitempty"`
	AssignedAdmin      *primitive.ObjectID `bson:"assignedAdmin,omitempty"`
	StatusUpdatedAt    time.Time           `bson:"statusUpdatedAt"`
	AdditionalComments string              `bson:"additionalComments,omitempty"`
	CreatedAt          time.Time           `bson:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt"`
}

func (d *reportDoc) report() *Report {
	r := &Report{
		ID:                 d.ID.Hex(),
		UserID:             d.UserID.Hex(),
		Title:              d.Title,
		Description:        d.Description,
		PhotoURL:           d.PhotoURL,
		Location:           Location(d.Location),
		Category:           d.Category,
		Status:             d.Status,
		AdminNotes:         d.AdminNotes,
		StatusUpdatedAt:    d.StatusUpdatedAt,
		AdditionalComments: d.AdditionalComments,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.AssignedAdmin != nil {
		hex := d.AssignedAdmin.Hex()
		r.AssignedAdmin = &hex
	}
	return r
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "location.latitude", Value: 1}, {Key: "location.longitude", Value: 1}}},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, r *Report) error {
	uid, err := primitive.ObjectIDFromHex(r.UserID)
	if err != nil {
		return fmt.Errorf("owner id %q: %w", r.UserID, err)
	}
	if r.Status == "" {
		r.Status = StatusSubmitted
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.StatusUpdatedAt.IsZero() {
		r.StatusUpdatedAt = now
	}
	doc := reportDoc{
		UserID:             uid,
		Title:              r.Title,
		Description:        r.Description,
		PhotoURL:           r.PhotoURL,
		Location:           locationDoc(r.Location),
		Category:           r.Category,
		Status:             r.Status,
		AdminNotes:         r.AdminNotes,
		StatusUpdatedAt:    r.StatusUpdatedAt,
		AdditionalComments: r.AdditionalComments,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		r.ID = oid.Hex()
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return decodeOne(s.col.FindOne(ctx, bson.M{"_id": oid}))
}

func decodeOne(res *mongo.SingleResult) (*Report, error) {
	var doc reportDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.report(), nil
}

// listQuery builds the filter and find options for f. ok is false when the
// owner id cannot match any document.
func listQuery(f ListFilter) (filter bson.M, opts *options.FindOptions, ok bool) {
	f = f.normalized()
	filter = bson.M{}
	if f.UserID != "" {
		uid, err := primitive.ObjectIDFromHex(f.UserID)
		if err != nil {
			return nil, nil, false
		}
		filter["userId"] = uid
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	dir := 1
	if f.Desc {
		dir = -1
	}
	opts = options.Find().
		SetSort(bson.D{{Key: sortFields[f.SortBy].field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(f.Skip())).
		SetLimit(int64(f.Limit))
	return filter, opts, true
}

func (s *MongoStore) List(ctx context.Context, f ListFilter) ([]Report, int64, error) {
	filter, opts, ok := listQuery(f)
	if !ok {
		return []Report{}, 0, nil
	}
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	res := []Report{}
	for cur.Next(ctx) {
		var doc reportDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		res = append(res, *doc.report())
	}
	return res, total, cur.Err()
}

func (s *MongoStore) update(ctx context.Context, id string, update interface{}) (*Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts))
}

func (s *MongoStore) SetStatus(ctx context.Context, id string, ch StatusChange) (*Report, error) {
	adminID, err := primitive.ObjectIDFromHex(ch.AdminID)
	if err != nil {
		return nil, fmt.Errorf("admin id %q: %w", ch.AdminID, err)
	}
	set := bson.M{
		"status":          ch.Status,
		"assignedAdmin":   adminID,
		"statusUpdatedAt": ch.At,
		"updatedAt":       ch.At,
	}
	if ch.AdminNotes != nil {
		set["adminNotes"] = *ch.AdminNotes
	}
	return s.update(ctx, id, bson.M{"$set": set})
}

// assignUpdate is an update pipeline so the Submitted check and the write are one atomic step.
func assignUpdate(adminID primitive.ObjectID, at time.Time) mongo.Pipeline {
	bump := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$status", string(StatusSubmitted)}}},
		string(StatusInProgress),
		"$status",
	}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "assignedAdmin", Value: adminID},
			{Key: "status", Value: bump},
			{Key: "statusUpdatedAt", Value: at},
			{Key: "updatedAt", Value: at},
		}}},
	}
}

func (s *MongoStore) Assign(ctx context.Context, id, adminID string, at time.Time) (*Report, error) {
	aid, err := primitive.ObjectIDFromHex(adminID)
	if err != nil {
		return nil, fmt.Errorf("admin id %q: %w", adminID, err)
	}
	return s.update(ctx, id, assignUpdate(aid, at))
}

func (s *MongoStore) Touch(ctx context.Context, id string, at time.Time) (*Report, error) {
	return s.update(ctx, id, bson.M{"$set": bson.M{"statusUpdatedAt": at, "updatedAt": at}})
}

func (s *MongoStore) Delete(ctx context.Context, id string) (*Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return decodeOne(s.col.FindOneAndDelete(ctx, bson.M{"_id": oid}))
}

func (s *MongoStore) Each(ctx context.Context, fn func(*Report) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc reportDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		if err := fn(doc.report()); err != nil {
			return err
		}
	}
	return cur.Err()
}

func countBy(field string) bson.D {
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: field},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
}

func statusPipeline() mongo.Pipeline {
	return mongo.Pipeline{countBy("$status"), {{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}}}
}

func categoryPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		countBy("$category"),
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

func overTimePipeline(since time.Time) mongo.Pipeline {
	day := bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: "%Y-%m-%d"},
		{Key: "date", Value: "$createdAt"},
	}}}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: day},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (s *MongoStore) aggregate(ctx context.Context, p mongo.Pipeline) ([]Bucket, error) {
	cur, err := s.col.Aggregate(ctx, p)
	if err != nil {
		return nil, err
	}
	out := []Bucket{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Stats(ctx context.Context, since time.Time, recent int) (*Stats, error) {
	st := &Stats{}
	var err error
	if st.ByStatus, err = s.aggregate(ctx, statusPipeline()); err != nil {
		return nil, err
	}
	st.tally()
	if st.ByCategory, err = s.aggregate(ctx, categoryPipeline()); err != nil {
		return nil, err
	}
	if st.OverTime, err = s.aggregate(ctx, overTimePipeline(since)); err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(recent)).
		SetProjection(bson.M{"title": 1, "status": 1, "category": 1, "createdAt": 1, "userId": 1})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	st.Recent = []RecentReport{}
	for cur.Next(ctx) {
		var doc reportDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		st.Recent = append(st.Recent, RecentReport{
			ID:        doc.ID.Hex(),
			Title:     doc.Title,
			Status:    doc.Status,
			Category:  doc.Category,
			CreatedAt: doc.CreatedAt,
			UserID:    doc.UserID.Hex(),
		})
	}
	return st, cur.Err()
}
