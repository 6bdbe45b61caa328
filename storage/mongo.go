package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidhouse/auction"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoCursor interface for mocking
type MongoCursor interface {
	All(ctx context.Context, results interface{}) error
	Close(ctx context.Context) error
	Err() error
	Next(ctx context.Context) bool
	Decode(v interface{}) error
}

// MongoSingleResult interface for mocking
type MongoSingleResult interface {
	Decode(v interface{}) error
}

// MongoCollection interface for mocking
type MongoCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (MongoCursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) MongoSingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Indexes() mongo.IndexView
}

// mongoCursorAdapter adapts *mongo.Cursor to MongoCursor
type mongoCursorAdapter struct {
	*mongo.Cursor
}

func (m *mongoCursorAdapter) All(ctx context.Context, results interface{}) error {
	return m.Cursor.All(ctx, results)
}

func (m *mongoCursorAdapter) Close(ctx context.Context) error {
	return m.Cursor.Close(ctx)
}

func (m *mongoCursorAdapter) Err() error {
	return m.Cursor.Err()
}

func (m *mongoCursorAdapter) Next(ctx context.Context) bool {
	return m.Cursor.Next(ctx)
}

func (m *mongoCursorAdapter) Decode(v interface{}) error {
	return m.Cursor.Decode(v)
}

// mongoCollectionAdapter adapts *mongo.Collection to MongoCollection
type mongoCollectionAdapter struct {
	*mongo.Collection
}

func (m *mongoCollectionAdapter) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (MongoCursor, error) {
	cursor, err := m.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &mongoCursorAdapter{Cursor: cursor}, nil
}

func (m *mongoCollectionAdapter) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) MongoSingleResult {
	return m.Collection.FindOne(ctx, filter, opts...)
}

// MongoDB holds the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB creates a new MongoDB connection
func NewMongoDB(uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB")
	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// HealthCheck verifies the connection is alive
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// MongoAuctionStorage implements AuctionStorage on MongoDB, for deployments
// already running Mongo for metadata.
type MongoAuctionStorage struct {
	auctions MongoCollection
	logger   *zap.SugaredLogger
}

// NewMongoAuctionStorage creates a Mongo-backed auction storage
func NewMongoAuctionStorage(mongoDB *MongoDB, logger *zap.SugaredLogger) *MongoAuctionStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MongoAuctionStorage{
		auctions: &mongoCollectionAdapter{Collection: mongoDB.Database.Collection("auctions")},
		logger:   logger,
	}
}

// CreateAuction inserts a new auction
func (mas *MongoAuctionStorage) CreateAuction(ctx context.Context, a *auction.Auction) error {
	count, err := mas.auctions.CountDocuments(ctx, bson.M{"id": a.ID})
	if err != nil {
		return fmt.Errorf("checking existing auction: %w", err)
	}
	if count > 0 {
		return ErrAuctionExists
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := mas.auctions.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("inserting auction: %w", err)
	}
	mas.logger.Infow("auction created", "auction_id", a.ID, "status", a.Status)
	return nil
}

// GetAuction retrieves an auction by ID
func (mas *MongoAuctionStorage) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	var a auction.Auction
	err := mas.auctions.FindOne(ctx, bson.M{"id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding auction: %w", err)
	}
	return &a, nil
}

// ListAuctions returns a page of auctions matching filters plus the total count
func (mas *MongoAuctionStorage) ListAuctions(ctx context.Context, filters AuctionFilters) ([]auction.Auction, int64, error) {
	filter := bson.M{}
	if filters.Status != "" {
		filter["status"] = string(filters.Status)
	}
	if filters.CreatedBy != "" {
		filter["created_by"] = filters.CreatedBy
	}

	total, err := mas.auctions.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting auctions: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(filters.Offset))

	cursor, err := mas.auctions.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("finding auctions: %w", err)
	}
	defer cursor.Close(ctx)

	auctions := make([]auction.Auction, 0, limit)
	if err := cursor.All(ctx, &auctions); err != nil {
		return nil, 0, fmt.Errorf("decoding auctions: %w", err)
	}
	return auctions, total, nil
}

// UpdateAuction replaces the mutable fields of an auction
func (mas *MongoAuctionStorage) UpdateAuction(ctx context.Context, id string, a *auction.Auction) error {
	a.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"title":           a.Title,
		"description":     a.Description,
		"token_ref":       a.TokenRef,
		"start_time":      a.StartTime,
		"duration_hours":  a.DurationHours,
		"user_end_time":   a.UserEndTime,
		"actual_end_time": a.ActualEndTime,
		"buffer_seconds":  a.BufferSeconds,
		"grace_seconds":   a.GraceSeconds,
		"min_increment":   a.MinIncrement,
		"status":          string(a.Status),
		"updated_at":      a.UpdatedAt,
	}}

	result, err := mas.auctions.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("updating auction: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// UpdateAuctionStatus transitions an auction's status
func (mas *MongoAuctionStorage) UpdateAuctionStatus(ctx context.Context, id string, status auction.Status) error {
	result, err := mas.auctions.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("updating auction status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// DeleteAuction removes an auction
func (mas *MongoAuctionStorage) DeleteAuction(ctx context.Context, id string) error {
	result, err := mas.auctions.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("deleting auction: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// ListEndingBefore returns active auctions whose actual end time is at or before cutoff
func (mas *MongoAuctionStorage) ListEndingBefore(ctx context.Context, cutoff int64) ([]auction.Auction, error) {
	filter := bson.M{
		"status":          string(auction.StatusActive),
		"actual_end_time": bson.M{"$lte": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "actual_end_time", Value: 1}})

	cursor, err := mas.auctions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("finding ending auctions: %w", err)
	}
	defer cursor.Close(ctx)

	auctions := make([]auction.Auction, 0)
	if err := cursor.All(ctx, &auctions); err != nil {
		return nil, fmt.Errorf("decoding auctions: %w", err)
	}
	return auctions, nil
}

// EnsureIndexes creates the indexes the store's queries depend on
func (mas *MongoAuctionStorage) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "actual_end_time", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := mas.auctions.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating auction indexes: %w", err)
	}
	return nil
}

// MongoBidStorage implements BidStorage on MongoDB
type MongoBidStorage struct {
	bids   MongoCollection
	logger *zap.SugaredLogger
}

// NewMongoBidStorage creates a Mongo-backed bid storage
func NewMongoBidStorage(mongoDB *MongoDB, logger *zap.SugaredLogger) *MongoBidStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MongoBidStorage{
		bids:   &mongoCollectionAdapter{Collection: mongoDB.Database.Collection("bids")},
		logger: logger,
	}
}

// CreateBid inserts an accepted bid
func (mbs *MongoBidStorage) CreateBid(ctx context.Context, b *auction.Bid) error {
	count, err := mbs.bids.CountDocuments(ctx, bson.M{"id": b.ID})
	if err != nil {
		return fmt.Errorf("checking existing bid: %w", err)
	}
	if count > 0 {
		return ErrDuplicateBid
	}

	b.CreatedAt = time.Now().UTC()
	if _, err := mbs.bids.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("inserting bid: %w", err)
	}
	return nil
}

// GetBid retrieves a bid by ID
func (mbs *MongoBidStorage) GetBid(ctx context.Context, id string) (*auction.Bid, error) {
	var b auction.Bid
	err := mbs.bids.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding bid: %w", err)
	}
	return &b, nil
}

// ListBids returns the bids on an auction, highest first
func (mbs *MongoBidStorage) ListBids(ctx context.Context, auctionID string, limit, offset int) ([]auction.Bid, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "amount", Value: -1}, {Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := mbs.bids.Find(ctx, bson.M{"auction_id": auctionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("finding bids: %w", err)
	}
	defer cursor.Close(ctx)

	bids := make([]auction.Bid, 0, limit)
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("decoding bids: %w", err)
	}
	return bids, nil
}

// HighestBid returns the current top bid, or ErrBidNotFound when there are none
func (mbs *MongoBidStorage) HighestBid(ctx context.Context, auctionID string) (*auction.Bid, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "amount", Value: -1}, {Key: "created_at", Value: 1}})

	var b auction.Bid
	err := mbs.bids.FindOne(ctx, bson.M{"auction_id": auctionID}, opts).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding highest bid: %w", err)
	}
	return &b, nil
}

// CountBids returns the number of bids on an auction
func (mbs *MongoBidStorage) CountBids(ctx context.Context, auctionID string) (int64, error) {
	count, err := mbs.bids.CountDocuments(ctx, bson.M{"auction_id": auctionID})
	if err != nil {
		return 0, fmt.Errorf("counting bids: %w", err)
	}
	return count, nil
}

// EnsureIndexes creates the indexes the store's queries depend on
func (mbs *MongoBidStorage) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "auction_id", Value: 1}, {Key: "amount", Value: -1}}},
	}
	if _, err := mbs.bids.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating bid indexes: %w", err)
	}
	return nil
}
