package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"recently-viewed-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Runs against a real server only when MONGODB_TEST_URI is set.
func newTestMongoRepository(t *testing.T) *MongoRepository {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("rvp_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo := NewMongoRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongoRepositorySessions(t *testing.T) {
	repo := newTestMongoRepository(t)
	ctx := context.Background()

	session, err := repo.Get(ctx, "foo.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, repo.Set(ctx, "foo.myshopify.com", "first", "read_products"))
	require.NoError(t, repo.Set(ctx, "foo.myshopify.com", "second", "read_products"))

	session, err = repo.Get(ctx, "foo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "second", session.AccessToken)

	require.NoError(t, repo.Delete(ctx, "foo.myshopify.com"))
	session, err = repo.Get(ctx, "foo.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestMongoRepositoryOAuthStates(t *testing.T) {
	repo := newTestMongoRepository(t)
	states := repo.OAuthStates()
	ctx := context.Background()

	require.NoError(t, states.Save(ctx, &domain.OAuthState{
		State:     "abc",
		Shop:      "foo.myshopify.com",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}))

	got, err := states.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "foo.myshopify.com", got.Shop)

	got, err = states.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMongoRepositoryLogWebhook(t *testing.T) {
	repo := newTestMongoRepository(t)
	err := repo.LogWebhook(context.Background(), &domain.WebhookEvent{
		ID:         uuid.NewString(),
		Topic:      domain.TopicShopUpdate,
		Shop:       "foo.myshopify.com",
		Verified:   true,
		ReceivedAt: time.Now(),
	})
	assert.NoError(t, err)
}
