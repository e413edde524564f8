package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cognichat/internal/config"
	"cognichat/internal/logger"
	"cognichat/models"
	"cognichat/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPagesCollection is read when a mongodb locator names no collection.
const DefaultPagesCollection = "pages"

// MongoSource reads previously crawled pages from a MongoDB collection.
// Locators look like mongodb://host:27017/db?collection=pages. It never writes.
type MongoSource struct {
	limit   int64
	connect func(ctx context.Context, uri string) (*mongo.Client, error)
}

func NewMongoSource(limit int) *MongoSource {
	return &MongoSource{limit: int64(limit), connect: config.ConnectMongoDB}
}

type mongoLocator struct {
	URI        string
	Database   string
	Collection string
}

// parseMongoLocator splits the collection option off a mongodb URI.
func parseMongoLocator(locator string) (mongoLocator, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return mongoLocator{}, err
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return mongoLocator{}, fmt.Errorf("not a mongodb locator: %s", models.RedactLocator(locator))
	}

	db := strings.Trim(u.Path, "/")
	if db == "" {
		return mongoLocator{}, fmt.Errorf("mongodb locator needs a database path")
	}

	q := u.Query()
	coll := q.Get("collection")
	if coll == "" {
		coll = DefaultPagesCollection
	}
	q.Del("collection")
	u.RawQuery = q.Encode()

	return mongoLocator{URI: u.String(), Database: db, Collection: coll}, nil
}

func (m *MongoSource) Load(ctx context.Context, locator string) ([]models.Document, error) {
	loc, err := parseMongoLocator(locator)
	if err != nil {
		return nil, &models.FetchError{Locator: locator, Err: err}
	}

	client, err := m.connect(ctx, loc.URI)
	if err != nil {
		return nil, &models.FetchError{Locator: locator, Err: err}
	}
	defer client.Disconnect(context.Background())

	opts := options.Find().SetSort(bson.D{{Key: "crawled_at", Value: 1}, {Key: "url", Value: 1}})
	if m.limit > 0 {
		opts.SetLimit(m.limit)
	}
	cursor, err := client.Database(loc.Database).Collection(loc.Collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &models.FetchError{Locator: locator, Err: err}
	}
	defer cursor.Close(ctx)

	var pages []models.CrawledPage
	if err := cursor.All(ctx, &pages); err != nil {
		return nil, &models.FetchError{Locator: locator, Err: fmt.Errorf("decode pages: %w", err)}
	}

	docs := make([]models.Document, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		docs = append(docs, p.ToDocument(utils.DocumentID(p.URL)))
	}

	logger.Info("loaded pages from MongoDB",
		"database", loc.Database,
		"collection", loc.Collection,
		"documents", len(docs))
	return docs, nil
}
