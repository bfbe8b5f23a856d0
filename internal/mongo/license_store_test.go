package mongo_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/mongo"
	"winsbygroup.com/licverify/internal/testutil"
)

// Set LICVERIFY_TEST_MONGO_URI (e.g. mongodb://localhost:27017) to run.
func newStore(t *testing.T) license.Store {
	t.Helper()
	uri := os.Getenv("LICVERIFY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LICVERIFY_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	dbName := "licverify_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: uri, Database: dbName})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store := mongo.NewLicenseStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return store
}

func TestLicenseStoreContract(t *testing.T) {
	testutil.RunStoreContract(t, newStore)
}
