// Package mongo provides a MongoDB-backed implementation of the storage.Store interface.
//
// Users and groups are documents; a group document embeds its member IDs and
// an append is a single filtered FindOneAndUpdate on the version field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

const (
	// DefaultDatabaseName is used when Config.DatabaseName is empty.
	DefaultDatabaseName = "travelmatch"

	usersCollection    = "users"
	groupsCollection   = "groups"
	countersCollection = "counters"
	groupSeqCounter    = "group_seq"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Config holds Store configuration.
type Config struct {
	// URI is the MongoDB connection string.
	URI string

	// DatabaseName is the name of the database holding the collections.
	DatabaseName string
}

// Store implements storage.Store using MongoDB.
// It's safe to use it concurrently from multiple goroutines.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	groups   *mongo.Collection
	counters *mongo.Collection
}

type userDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Phone       string    `bson:"phone"`
	Email       string    `bson:"email"`
	ArrivalTime time.Time `bson:"arrival_time"`
	Location    string    `bson:"location"`
	CreatedAt   int64     `bson:"created_at"`
}

type groupDoc struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	Members     []string  `bson:"members"`
	ArrivalTime time.Time `bson:"arrival_time"`
	Location    string    `bson:"location"`
	Version     int64     `bson:"version"`
	CreatedAt   int64     `bson:"created_at"`
}

// New connects to MongoDB and ensures indexes exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = DefaultDatabaseName
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.DatabaseName)
	s := &Store{
		client:   client,
		users:    db.Collection(usersCollection),
		groups:   db.Collection(groupsCollection),
		counters: db.Collection(countersCollection),
	}

	_, err = s.groups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create group indexes: %w", err)
	}

	return s, nil
}

// Ping checks the server connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a new user document.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	doc := userDoc{
		ID:          user.ID,
		Name:        user.Name,
		Phone:       user.Phone,
		Email:       user.Email,
		ArrivalTime: user.ArrivalTime,
		Location:    user.Location,
		CreatedAt:   user.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUsers retrieves users by ID, in the order given.
// Users that don't exist are omitted from the result.
func (s *Store) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	found := make(map[string]*models.User, len(docs))
	for _, doc := range docs {
		found[doc.ID] = &models.User{
			ID:          doc.ID,
			Name:        doc.Name,
			Phone:       doc.Phone,
			Email:       doc.Email,
			ArrivalTime: doc.ArrivalTime,
			Location:    doc.Location,
			CreatedAt:   doc.CreatedAt,
		}
	}
	return storage.OrderUsers(ids, found), nil
}

// CreateGroup inserts a new group document.
// Groups get a sequence number from the counters collection so listing
// order is creation order even within the same second.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Version = 1

	seq, err := s.nextSeq(ctx, groupSeqCounter)
	if err != nil {
		return err
	}

	members := group.Members
	if members == nil {
		members = []string{}
	}

	doc := groupDoc{
		ID:          group.ID,
		Seq:         seq,
		Members:     members,
		ArrivalTime: group.ArrivalTime,
		Location:    group.Location,
		Version:     group.Version,
		CreatedAt:   group.CreatedAt,
	}
	if _, err := s.groups.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var doc groupDoc
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return doc.model(), nil
}

// ListGroups retrieves all groups in creation order.
func (s *Store) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.findGroups(ctx, bson.M{})
}

// ListGroupsByMember retrieves all groups whose members array contains the user.
func (s *Store) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.findGroups(ctx, bson.M{"members": userID})
}

// AppendMember pushes the user onto the group only if the version is unchanged.
func (s *Store) AppendMember(ctx context.Context, groupID string, expectedVersion int64, userID string) (*models.Group, error) {
	filter := bson.M{"_id": groupID, "version": expectedVersion}
	update := bson.M{
		"$push": bson.M{"members": userID},
		"$inc":  bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc groupDoc
	err := s.groups.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.model(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to append group member: %w", err)
	}

	n, err := s.groups.CountDocuments(ctx, bson.M{"_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil, fmt.Errorf("group %s at version %d: %w", groupID, expectedVersion, storage.ErrVersionConflict)
}

func (s *Store) findGroups(ctx context.Context, filter bson.M) ([]*models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.groups.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	groups := make([]*models.Group, len(docs))
	for i := range docs {
		groups[i] = docs[i].model()
	}
	return groups, nil
}

// nextSeq atomically increments and returns the named counter.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", name, err)
	}
	return counter.Value, nil
}

func (d *groupDoc) model() *models.Group {
	return &models.Group{
		ID:          d.ID,
		Members:     d.Members,
		ArrivalTime: d.ArrivalTime,
		Location:    d.Location,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
	}
}
