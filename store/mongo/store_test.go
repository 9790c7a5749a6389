package mongo_test

import (
	"context"
	"os"
	"testing"

	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/store/mongo"
	"github.com/xraph/parklot/store/storetest"
)

// The suite needs a replica set; every subtest drops the database first.
func TestConformance(t *testing.T) {
	uri := os.Getenv("PARKLOT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PARKLOT_TEST_MONGO_URI not set")
	}
	database := os.Getenv("PARKLOT_TEST_MONGO_DB")
	if database == "" {
		database = "parklot_test"
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := mongo.Open(uri, database)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Database().Drop(ctx); err != nil {
			t.Fatal(err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatal(err)
		}
		return s
	})
}
