package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"product-discovery-service/internal/domain"
)

// Collection names used by the document backend.
const (
	ProductsCollection   = "products"
	CategoriesCollection = "categories"
	AnalyticsCollection  = "product_analytics"
)

// MongoStore implements Backend on top of a MongoDB database.
type MongoStore struct {
	client     *mongo.Client
	products   *mongo.Collection
	categories *mongo.Collection
	analytics  *mongo.Collection
	log        *logrus.Logger
}

// ConnectMongo opens a client, pings the primary and returns a store bound to dbName.
func ConnectMongo(ctx context.Context, uri, dbName string, timeout time.Duration, logger *logrus.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: failed to ping mongodb: %w", err)
	}
	logger.WithField("database", dbName).Info("Connected to MongoDB")
	return NewMongoStore(client, dbName, logger), nil
}

// NewMongoStore creates a MongoStore from an existing client.
func NewMongoStore(client *mongo.Client, dbName string, logger *logrus.Logger) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:     client,
		products:   db.Collection(ProductsCollection),
		categories: db.Collection(CategoriesCollection),
		analytics:  db.Collection(AnalyticsCollection),
		log:        logger,
	}
}

// EnsureIndexes creates the indexes backing the curated sorts and category lookups.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: FieldCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: FieldHits, Value: -1}}},
		{Keys: bson.D{{Key: FieldLastViewed, Value: -1}, {Key: FieldHits, Value: -1}}},
		{Keys: bson.D{{Key: FieldRating, Value: -1}, {Key: FieldReviewCount, Value: -1}, {Key: FieldHits, Value: -1}}},
		{Keys: bson.D{{Key: FieldCategoryID, Value: 1}, {Key: FieldPrice, Value: 1}}},
		{Keys: bson.D{{Key: FieldDiscount, Value: -1}}},
	}
	if _, err := s.products.Indexes().CreateMany(ctx, models); err != nil {
		return unavailable("EnsureIndexes", err)
	}
	unique := mongo.IndexModel{Keys: bson.D{{Key: FieldName, Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := s.categories.Indexes().CreateOne(ctx, unique); err != nil {
		return unavailable("EnsureIndexes", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable("Ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.log.Info("Disconnecting from MongoDB...")
	return s.client.Disconnect(ctx)
}

// --- ProductStorer Implementation ---

func (s *MongoStore) CountProducts(ctx context.Context, filter Predicate) (int64, error) {
	f, err := mongoFilter(filter)
	if err != nil {
		return 0, err
	}
	s.log.WithField("filter", f).Debug("mongo: count products")
	n, err := s.products.CountDocuments(ctx, f)
	if err != nil {
		return 0, unavailable("CountProducts", err)
	}
	return n, nil
}

func (s *MongoStore) FindProducts(ctx context.Context, q Query) ([]domain.Product, error) {
	f, opts, err := mongoFind(q)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"filter": f, "skip": q.Skip, "limit": q.Limit}).Debug("mongo: find products")
	cursor, err := s.products.Find(ctx, f, opts)
	if err != nil {
		return nil, unavailable("FindProducts", err)
	}
	defer cursor.Close(ctx)

	products := make([]domain.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, unavailable("FindProducts", err)
	}
	return products, nil
}

func (s *MongoStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.products.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, unavailable("GetProductByID", err)
	}
	return &product, nil
}

func (s *MongoStore) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	_, err := s.products.ReplaceOne(ctx, bson.D{{Key: "_id", Value: product.ID}}, product, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, unavailable("SaveProduct", err)
	}
	saved := *product
	return &saved, nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.products.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return unavailable("DeleteProduct", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *MongoStore) IncrementProduct(ctx context.Context, id string, inc Increment) error {
	res, err := s.products.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, mongoUpdate(inc))
	if err != nil {
		return unavailable("IncrementProduct", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- CategoryStorer Implementation ---

func (s *MongoStore) FindCategories(ctx context.Context, q Query) ([]domain.Category, error) {
	f, opts, err := mongoFind(q)
	if err != nil {
		return nil, err
	}
	cursor, err := s.categories.Find(ctx, f, opts)
	if err != nil {
		return nil, unavailable("FindCategories", err)
	}
	defer cursor.Close(ctx)

	categories := make([]domain.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, unavailable("FindCategories", err)
	}
	return categories, nil
}

func (s *MongoStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	var category domain.Category
	err := s.categories.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&category)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCategoryNotFound
		}
		return nil, unavailable("GetCategoryByID", err)
	}
	return &category, nil
}

func (s *MongoStore) SaveCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	_, err := s.categories.ReplaceOne(ctx, bson.D{{Key: "_id", Value: category.ID}}, category, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryNameExists
		}
		return nil, unavailable("SaveCategory", err)
	}
	saved := *category
	return &saved, nil
}

func (s *MongoStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.categories.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return unavailable("DeleteCategory", err)
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- AnalyticsStorer Implementation ---

func (s *MongoStore) GetAnalytics(ctx context.Context, productID string) (*domain.ProductAnalytics, error) {
	var a domain.ProductAnalytics
	err := s.analytics.FindOne(ctx, bson.D{{Key: "_id", Value: productID}}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, unavailable("GetAnalytics", err)
	}
	return &a, nil
}

func (s *MongoStore) CreateAnalytics(ctx context.Context, a *domain.ProductAnalytics) (*domain.ProductAnalytics, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored domain.ProductAnalytics
	err := s.analytics.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: a.ProductID}}, analyticsInsertDoc(a), opts).Decode(&stored)
	if err != nil {
		return nil, unavailable("CreateAnalytics", err)
	}
	return &stored, nil
}

func (s *MongoStore) IncrementAnalytics(ctx context.Context, productID string, inc Increment) error {
	update := append(mongoUpdate(inc), bson.E{
		Key:   "$setOnInsert",
		Value: bson.D{{Key: FieldCreatedAt, Value: time.Now().UTC()}},
	})
	_, err := s.analytics.UpdateOne(ctx, bson.D{{Key: "_id", Value: productID}}, update, options.Update().SetUpsert(true))
	if err != nil {
		return unavailable("IncrementAnalytics", err)
	}
	return nil
}

func (s *MongoStore) DeleteAnalytics(ctx context.Context, productID string) error {
	res, err := s.analytics.DeleteOne(ctx, bson.D{{Key: "_id", Value: productID}})
	if err != nil {
		return unavailable("DeleteAnalytics", err)
	}
	if res.DeletedCount == 0 {
		return ErrAnalyticsNotFound
	}
	return nil
}

// --- translation ---

func mongoField(field string) string {
	if field == FieldID {
		return "_id"
	}
	return field
}

// matchNothing is used for an empty disjunction, which MongoDB rejects as $or: [].
var matchNothing = bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}

func mongoFilter(p Predicate) (bson.D, error) {
	switch p.Op {
	case OpAll:
		return bson.D{}, nil
	case OpAnd, OpOr:
		if len(p.Children) == 0 {
			if p.Op == OpAnd {
				return bson.D{}, nil
			}
			return matchNothing, nil
		}
		parts := make(bson.A, 0, len(p.Children))
		for _, c := range p.Children {
			d, err := mongoFilter(c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, d)
		}
		key := "$and"
		if p.Op == OpOr {
			key = "$or"
		}
		return bson.D{{Key: key, Value: parts}}, nil
	case OpNot:
		if len(p.Children) != 1 {
			return nil, fmt.Errorf("%w: not expects one operand", ErrUnsupported)
		}
		inner, err := mongoFilter(p.Children[0])
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil
	}

	field := mongoField(p.Field)
	cond := func(op string, v any) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: v}}}}
	}
	switch p.Op {
	case OpEq:
		return bson.D{{Key: field, Value: p.Value}}, nil
	case OpNe:
		return cond("$ne", p.Value), nil
	case OpGt:
		return cond("$gt", p.Value), nil
	case OpGte:
		return cond("$gte", p.Value), nil
	case OpLt:
		return cond("$lt", p.Value), nil
	case OpLte:
		return cond("$lte", p.Value), nil
	case OpRegex:
		pattern, _ := p.Value.(string)
		return bson.D{{Key: field, Value: primitive.Regex{Pattern: pattern, Options: "i"}}}, nil
	case OpIn:
		return cond("$in", p.Value), nil
	case OpExists:
		return cond("$exists", p.Value), nil
	case OpNull:
		return cond("$type", "null"), nil
	case OpSize:
		return cond("$size", p.Value), nil
	}
	return nil, fmt.Errorf("%w: operator %d", ErrUnsupported, p.Op)
}

func mongoSort(keys []SortField) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: mongoField(k.Field), Value: dir})
	}
	return d
}

func mongoFind(q Query) (bson.D, *options.FindOptions, error) {
	f, err := mongoFilter(q.Filter)
	if err != nil {
		return nil, nil, err
	}
	opts := options.Find().SetSkip(q.Skip)
	if len(q.Sort) > 0 {
		opts.SetSort(mongoSort(q.Sort))
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if len(q.Fields) > 0 {
		projection := make(bson.D, 0, len(q.Fields))
		for _, field := range q.Fields {
			projection = append(projection, bson.E{Key: mongoField(field), Value: 1})
		}
		opts.SetProjection(projection)
	}
	return f, opts, nil
}

func mongoUpdate(inc Increment) bson.D {
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: inc.Field, Value: inc.Delta}}}}
	if len(inc.Set) > 0 {
		set := make(bson.D, 0, len(inc.Set))
		for _, k := range sortedKeys(inc.Set) {
			set = append(set, bson.E{Key: k, Value: inc.Set[k]})
		}
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	return update
}

func analyticsInsertDoc(a *domain.ProductAnalytics) bson.D {
	doc := bson.D{
		{Key: "productName", Value: a.ProductName},
		{Key: FieldViews, Value: a.Views},
		{Key: FieldHits, Value: a.Hits},
		{Key: FieldAddsToCart, Value: a.AddsToCart},
		{Key: FieldPurchases, Value: a.Purchases},
		{Key: FieldCreatedAt, Value: a.CreatedAt},
	}
	if a.LastViewed != nil {
		doc = append(doc, bson.E{Key: FieldLastViewed, Value: *a.LastViewed})
	}
	return bson.D{{Key: "$setOnInsert", Value: doc}}
}
