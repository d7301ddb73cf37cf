package store

import (
	"context"
	"os"
	"testing"
	"time"

	"unisell/server/internal/database"
	"unisell/server/internal/models"
	"unisell/server/internal/utils"

	"go.uber.org/zap"
)

// Integration tests run against real servers only when their URLs are set.

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, url, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Every subtest uses fresh ids, so tables are shared safely.
	runStoreContract(t, func(t *testing.T) MessageStore { return NewPostgres(pool) })

	known := models.Account{ID: utils.NewObjectID(), Name: "Postgres User"}
	if _, err := pool.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2)`, known.ID, known.Name); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	runDirectoryContract(t, NewPostgresDirectory(pool), known)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := "unisell_test_" + utils.NewObjectID()
	client, db, err := database.ConnectMongo(ctx, uri, dbName, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := NewMongo(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	runStoreContract(t, func(t *testing.T) MessageStore { return s })

	known := models.Account{ID: utils.NewObjectID(), Name: "Mongo User"}
	uid, _ := oid(known.ID)
	if _, err := db.Collection(usersCollection).InsertOne(ctx, userDoc{ID: uid, Name: known.Name}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	runDirectoryContract(t, NewMongoDirectory(db), known)
}

func TestMongoRejectsMalformedIDs(t *testing.T) {
	if _, err := oid("nope"); err == nil {
		t.Fatalf("expected malformed id to fail")
	}
	if _, err := oids(utils.NewObjectID(), "bad"); err == nil {
		t.Fatalf("expected malformed id in batch to fail")
	}
}
