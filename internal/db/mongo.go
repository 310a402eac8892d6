package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidID = errors.New("invalid object id")

// PaginationParams holds pagination configuration
type PaginationParams struct {
	Page     int64  `json:"page"`     // Current page (1-based)
	PageSize int64  `json:"pageSize"` // Items per page
	SortBy   string `json:"sortBy"`   // Field to sort by
	SortDesc bool   `json:"sortDesc"` // Sort descending if true
}

// Normalize applies defaults and limits.
func (p PaginationParams) Normalize() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	if p.PageSize > 100 {
		p.PageSize = 100 // Max limit
	}
	return p
}

// PaginatedResult holds paginated query results
type PaginatedResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

// NewPaginatedResult fills in the page bookkeeping for data.
func NewPaginatedResult[T any](data []T, total int64, params PaginationParams) *PaginatedResult[T] {
	totalPages := total / params.PageSize
	if total%params.PageSize > 0 {
		totalPages++
	}
	if data == nil {
		data = []T{}
	}
	return &PaginatedResult[T]{
		Data:       data,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}
}

// Repository provides generic CRUD operations for MongoDB
type Repository[T any] struct {
	collection *mongo.Collection
}

// NewRepository creates a new generic repository
func NewRepository[T any](db *mongo.Database, collectionName string) *Repository[T] {
	return &Repository[T]{
		collection: db.Collection(collectionName),
	}
}

func OpenConnection(uri string, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}

	return client.Database(database), nil
}

// ParseID converts a hex string into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// EnsureIndexes creates the given indexes if they do not exist yet.
func (r *Repository[T]) EnsureIndexes(ctx context.Context, models ...mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Create inserts a new document and returns its generated ObjectID.
func (r *Repository[T]) Create(ctx context.Context, document T) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, document)
	if err != nil {
		return primitive.NilObjectID, err
	}
	oid, _ := result.InsertedID.(primitive.ObjectID)
	return oid, nil
}

// FindByID finds a document by its ObjectID
func (r *Repository[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

// FindOne finds a single document matching the filter
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	err := r.collection.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindAll finds all documents matching the filter
func (r *Repository[T]) FindAll(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Find opens a cursor over the documents matching the filter. The caller owns
// the cursor and must close it.
func (r *Repository[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return r.collection.Find(ctx, filter, opts...)
}

// FindWithPagination finds documents with pagination support
func (r *Repository[T]) FindWithPagination(ctx context.Context, filter bson.M, params PaginationParams) (*PaginatedResult[T], error) {
	params = params.Normalize()

	// Count total documents
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find()
	findOptions.SetSkip((params.Page - 1) * params.PageSize)
	findOptions.SetLimit(params.PageSize)

	if params.SortBy != "" {
		sortOrder := 1
		if params.SortDesc {
			sortOrder = -1
		}
		findOptions.SetSort(bson.D{{Key: params.SortBy, Value: sortOrder}, {Key: "_id", Value: sortOrder}})
	}

	results, err := r.FindAll(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}

	return NewPaginatedResult(results, total, params), nil
}

// UpdateByID applies $set to the document with the given ObjectID
func (r *Repository[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, update bson.M) (*mongo.UpdateResult, error) {
	return r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
}

// UpdateOne applies a full update document (operators included) to one match.
func (r *Repository[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	return r.collection.UpdateOne(ctx, filter, update)
}

// FindOneAndUpdate applies update to one match and returns the document after
// the update. With upsert set a missing document is created from the filter.
func (r *Repository[T]) FindOneAndUpdate(ctx context.Context, filter bson.M, update bson.M, upsert bool) (*T, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(upsert)

	var result T
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindOneAndDelete removes one match and returns it as it was before deletion.
func (r *Repository[T]) FindOneAndDelete(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	if err := r.collection.FindOneAndDelete(ctx, filter).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
