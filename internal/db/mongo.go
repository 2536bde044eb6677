package db

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"profile_spider/internal/config"
	"profile_spider/internal/logger"
	"profile_spider/internal/models"
	"profile_spider/internal/targets"
)

// MongoDB keeps the latest record per profile and one entry per batch.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	records  *mongo.Collection
	runs     *mongo.Collection
}

// Stats summarises the records collection.
type Stats struct {
	Profiles       int64   `bson:"profiles" json:"profiles"`
	Limited        int64   `bson:"limited" json:"limited"`
	AvgScrapeCount float64 `bson:"avg_scraped_count" json:"avg_scraped_count"`
	MaxScrapeCount int64   `bson:"max_scraped_count" json:"max_scraped_count"`
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.WithHint(errors.Wrap(err, "ping MongoDB"),
			"start MongoDB or set db.enabled: false")
	}

	database := client.Database(cfg.Database)
	d := &MongoDB{
		client:   client,
		database: database,
		records:  database.Collection(cfg.Collections.Records),
		runs:     database.Collection(cfg.Collections.Runs),
	}
	d.createIndexes(ctx)
	return d, nil
}

// createIndexes is best effort; failures are logged.
func (d *MongoDB) createIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "normalized_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "last_scraped", Value: 1}}},
	}
	if _, err := d.records.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Named("db").Warnw("could not create indexes", logger.FieldError, err)
	}
}

// ToDocument builds the stored form of rec.
func ToDocument(rec models.Record, runID string, now time.Time) models.ProfileDocument {
	profileURL := rec.Str(models.FieldProfileURL)
	fields := make(map[string]any, len(rec))
	for k, v := range rec.Clone() {
		fields[k] = v
	}
	normalized := targets.NormalizeURL(profileURL)
	return models.ProfileDocument{
		ID:               normalized,
		ProfileURL:       profileURL,
		NormalizedURL:    normalized,
		Username:         targets.Username(profileURL),
		Name:             rec.Str(models.FieldName),
		ExtractionMethod: rec.Str(models.FieldExtractionMethod),
		ExtractionStatus: rec.Str(models.FieldExtractionStatus),
		Fields:           fields,
		ContentHash:      ContentHash(rec),
		RunID:            runID,
		LastScraped:      now.Unix(),
	}
}

// ContentHash fingerprints the record's field values, ignoring key order.
func ContentHash(rec models.Record) string {
	h := md5.New()
	for _, k := range rec.Keys() {
		fmt.Fprintf(h, "%s=%v\n", k, rec[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// SaveRecord upserts rec keyed by normalized URL and bumps its scrape
// counter.
func (d *MongoDB) SaveRecord(ctx context.Context, runID string, rec models.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	doc := ToDocument(rec, runID, now)

	var set bson.M
	data, err := bson.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	if err := bson.Unmarshal(data, &set); err != nil {
		return errors.Wrap(err, "unmarshal record")
	}
	delete(set, "_id")
	delete(set, "scraped_count")
	delete(set, "first_scraped")

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"first_scraped": now.Unix()},
		"$inc":         bson.M{"scraped_count": 1},
	}
	_, err = d.records.UpdateOne(ctx, bson.M{"_id": doc.ID}, update, options.Update().SetUpsert(true))
	return errors.Wrapf(err, "save record %s", doc.NormalizedURL)
}

func (d *MongoDB) GetProfile(ctx context.Context, normalizedURL string) (*models.ProfileDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc models.ProfileDocument
	err := d.records.FindOne(ctx, bson.M{"_id": normalizedURL}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get profile %s", normalizedURL)
	}
	return &doc, nil
}

// GetStaleProfiles lists profile URLs not scraped for thresholdHours, oldest
// first.
func (d *MongoDB) GetStaleProfiles(ctx context.Context, thresholdHours, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(thresholdHours) * time.Hour).Unix()
	opts := options.Find().
		SetProjection(bson.M{"profile_url": 1}).
		SetSort(bson.D{{Key: "last_scraped", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := d.records.Find(ctx, bson.M{"last_scraped": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find stale profiles")
	}
	defer cursor.Close(ctx)

	var urls []string
	for cursor.Next(ctx) {
		var res struct {
			ProfileURL string `bson:"profile_url"`
		}
		if err := cursor.Decode(&res); err == nil && res.ProfileURL != "" {
			urls = append(urls, res.ProfileURL)
		}
	}
	return urls, errors.Wrap(cursor.Err(), "iterate stale profiles")
}

func (d *MongoDB) GetStats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "profiles", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "limited", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$extraction_method", models.MethodLimited}}}, 1, 0,
			}}}}}},
			{Key: "avg_scraped_count", Value: bson.D{{Key: "$avg", Value: "$scraped_count"}}},
			{Key: "max_scraped_count", Value: bson.D{{Key: "$max", Value: "$scraped_count"}}},
		}}},
	}

	cursor, err := d.records.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, errors.Wrap(err, "aggregate stats")
	}
	defer cursor.Close(ctx)

	var results []Stats
	if err := cursor.All(ctx, &results); err != nil {
		return Stats{}, errors.Wrap(err, "decode stats")
	}
	if len(results) == 0 {
		return Stats{}, nil
	}
	return results[0], nil
}

func (d *MongoDB) SaveRun(ctx context.Context, run models.RunHistory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.runs.InsertOne(ctx, run)
	return errors.Wrapf(err, "save run %s", run.ID)
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
