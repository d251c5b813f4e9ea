// Package mongo is the MongoDB Record Store backend.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "financeDB"

	transactionsCollection = "transactions"
	budgetsCollection      = "budgets"
)

// Store keeps transactions and budgets in two collections of one database.
type Store struct {
	cli          *mongo.Client
	transactions *mongo.Collection
	budgets      *mongo.Collection
	log          zerolog.Logger
}

// Open connects to uri and pings the server.
func Open(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Open: connect: %w", err)
	}
	if err := cli.Ping(connectCtx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("Open: ping: %w", err)
	}
	return New(cli, database, log), nil
}

// New wraps an already connected client.
func New(cli *mongo.Client, database string, log zerolog.Logger) *Store {
	if database == "" {
		database = DefaultDatabase
	}
	db := cli.Database(database)
	return &Store{
		cli:          cli,
		transactions: db.Collection(transactionsCollection),
		budgets:      db.Collection(budgetsCollection),
		log:          log,
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrInvalidID
	}
	return oid, nil
}

// InsertTransactions implements store.TransactionRepository with a single InsertMany.
func (s *Store) InsertTransactions(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	docs := make([]interface{}, len(txns))
	ids := make([]primitive.ObjectID, len(txns))
	for i, t := range txns {
		doc := toTransactionDoc(t)
		doc.ID = primitive.NewObjectID()
		ids[i] = doc.ID
		docs[i] = doc
	}

	if _, err := s.transactions.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("InsertTransactions: insert many: %w", err)
	}
	for i, t := range txns {
		t.ID = ids[i].Hex()
	}
	return nil
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	doc := toTransactionDoc(txn)
	doc.ID = primitive.NewObjectID()

	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("InsertTransaction: insert one: %w", err)
	}
	txn.ID = doc.ID.Hex()
	return nil
}

// ListTransactions implements store.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	cursor, err := s.transactions.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: find: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.log.Error().Err(err).Msg("Failed to close transactions cursor")
		}
	}()

	result := []*domain.Transaction{}
	for cursor.Next(ctx) {
		var doc transactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ListTransactions: decode: %w", err)
		}
		result = append(result, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: cursor: %w", err)
	}
	return result, nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, id string, txn *domain.Transaction) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	doc := toTransactionDoc(txn)
	res, err := s.transactions.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "date", Value: doc.Date},
			{Key: "category", Value: doc.Category},
			{Key: "description", Value: doc.Description},
			{Key: "paymentMethod", Value: doc.PaymentMethod},
			{Key: "amount", Value: doc.Amount},
			{Key: "type", Value: doc.Type},
			{Key: "isFestival", Value: doc.IsFestival},
		}}})
	if err != nil {
		return fmt.Errorf("UpdateTransaction: update one: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	txn.ID = id
	return nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.transactions, id)
}

// InsertBudget implements store.BudgetRepository.
func (s *Store) InsertBudget(ctx context.Context, b *domain.Budget) error {
	doc := toBudgetDoc(b)
	doc.ID = primitive.NewObjectID()

	if _, err := s.budgets.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("InsertBudget: insert one: %w", err)
	}
	b.ID = doc.ID.Hex()
	return nil
}

// ListBudgets implements store.BudgetRepository.
func (s *Store) ListBudgets(ctx context.Context) ([]*domain.Budget, error) {
	cursor, err := s.budgets.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: find: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.log.Error().Err(err).Msg("Failed to close budgets cursor")
		}
	}()

	var docs []budgetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListBudgets: decode: %w", err)
	}

	result := make([]*domain.Budget, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.toDomain())
	}
	return result, nil
}

// UpdateBudget implements store.BudgetRepository. createdAt is left untouched.
func (s *Store) UpdateBudget(ctx context.Context, id string, b *domain.Budget) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	doc := toBudgetDoc(b)
	res, err := s.budgets.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "category", Value: doc.Category},
			{Key: "budget", Value: doc.Budget},
			{Key: "type", Value: doc.Type},
			{Key: "validTill", Value: doc.ValidTill},
			{Key: "updatedAt", Value: doc.UpdatedAt},
		}}})
	if err != nil {
		return fmt.Errorf("UpdateBudget: update one: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	b.ID = id
	return nil
}

// DeleteBudget implements store.BudgetRepository.
func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.budgets, id)
}

func (s *Store) deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Migrate creates the (category, type) index the budget evaluator matches on.
func (s *Store) Migrate(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "category", Value: 1}, {Key: "type", Value: 1}},
		Options: options.Index().SetName("category_type"),
	}
	for _, coll := range []*mongo.Collection{s.transactions, s.budgets} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("Migrate: create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.cli.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("Close: disconnect: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
