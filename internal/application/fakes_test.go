package application

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"
)

type graphQLCall struct {
	Shop        string
	AccessToken string
	Document    string
	Variables   map[string]any
}

type fakeShopifyClient struct {
	mu        sync.Mutex
	token     *ports.TokenResponse
	tokenErr  error
	exchanged []string
	response  *ports.GraphQLResponse
	gqlErr    error
	calls     []graphQLCall
	noSecret  bool
}

func (f *fakeShopifyClient) Configured() bool {
	return !f.noSecret
}

func (f *fakeShopifyClient) ExchangeToken(_ context.Context, shop, code string) (*ports.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged = append(f.exchanged, shop+":"+code)
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return f.token, nil
}

func (f *fakeShopifyClient) GraphQL(_ context.Context, shop, accessToken, document string, variables map[string]any) (*ports.GraphQLResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, graphQLCall{Shop: shop, AccessToken: accessToken, Document: document, Variables: variables})
	if f.gqlErr != nil {
		return nil, f.gqlErr
	}
	return f.response, nil
}

type fakeCallbackVerifier struct {
	err error
}

func (f fakeCallbackVerifier) Verify(*url.URL) error {
	return f.err
}

type fakeRegistry struct {
	mu       sync.Mutex
	existing []domain.WebhookSubscription
	created  []domain.WebhookSubscription
	failOn   string
}

func (f *fakeRegistry) ListWebhooks(context.Context, string, string) ([]domain.WebhookSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WebhookSubscription(nil), f.existing...), nil
}

func (f *fakeRegistry) CreateWebhook(_ context.Context, _, _, topic, address string) (*domain.WebhookSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failOn {
		return nil, errors.New("boom")
	}
	sub := domain.WebhookSubscription{ID: uint64(len(f.created) + 1), Topic: topic, Address: address}
	f.created = append(f.created, sub)
	return &sub, nil
}

func (f *fakeRegistry) createdTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.created))
	for _, sub := range f.created {
		topics = append(topics, sub.Topic)
	}
	return topics
}
