// Команда seed наполняет Mongo демонстрационным каталогом занятий.
// Повторный запуск с -drop очищает каталог перед вставкой.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	mongostore "github.com/vladislavdragonenkov/booking/internal/storage/mongo"
)

const defaultTimeout = 30 * time.Second

type seedLesson struct {
	topic       string
	location    string
	price       float64
	spaces      int64
	description string
}

var demoCatalog = []seedLesson{
	{"math", "London", 100, 5, "Algebra and geometry fundamentals"},
	{"math", "Oxford", 90, 5, "Calculus for beginners"},
	{"english", "Bristol", 80, 5, "Grammar and composition"},
	{"english", "York", 85, 5, "Creative writing workshop"},
	{"music", "Bristol", 120, 5, "Piano for all levels"},
	{"music", "London", 110, 5, "Guitar essentials"},
	{"science", "Oxford", 95, 5, "Physics experiments"},
	{"science", "London", 105, 5, "Chemistry in practice"},
	{"art", "York", 70, 5, "Watercolour painting"},
	{"drama", "Bristol", 75, 5, "Stage acting basics"},
}

func main() {
	var (
		uri      string
		database string
		drop     bool
	)

	flag.StringVar(&uri, "uri", "", "MongoDB URI (fallback: BOOKING_MONGO_URI)")
	flag.StringVar(&database, "database", "booking", "database name")
	flag.BoolVar(&drop, "drop", false, "drop the lessons collection before seeding")
	flag.Parse()

	if strings.TrimSpace(uri) == "" {
		uri = strings.TrimSpace(os.Getenv("BOOKING_MONGO_URI"))
	}
	if uri == "" {
		fail("BOOKING_MONGO_URI (or -uri) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := mongostore.Open(ctx, uri, database)
	if err != nil {
		fail("open mongo store: %v", err)
	}
	defer func() { _ = store.Close(ctx) }()

	coll := store.Database().Collection("lessons")

	if drop {
		if err := coll.Drop(ctx); err != nil {
			fail("drop lessons collection: %v", err)
		}
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		fail("ensure indexes: %v", err)
	}

	docs := make([]interface{}, 0, len(demoCatalog))
	for _, l := range demoCatalog {
		docs = append(docs, bson.M{
			"topic":       l.topic,
			"location":    l.location,
			"price":       l.price,
			"spaces":      l.spaces,
			"space":       l.spaces,
			"description": l.description,
		})
	}

	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		fail("insert lessons: %v", err)
	}

	fmt.Printf("seeded %d lessons into %s.lessons\n", len(res.InsertedIDs), database)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
