package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// graphQLOperation is a parsed Admin API document
type graphQLOperation struct {
	Name     string
	Document string
}

func mustParseOperation(document string) graphQLOperation {
	doc, err := parser.ParseQuery(&ast.Source{Name: "billing", Input: document})
	if err != nil {
		panic(fmt.Sprintf("invalid graphql document: %v", err))
	}
	if len(doc.Operations) != 1 {
		panic(fmt.Sprintf("graphql document must hold one operation, got %d", len(doc.Operations)))
	}
	return graphQLOperation{Name: doc.Operations[0].Name, Document: document}
}

var (
	activeSubscriptionsQuery = mustParseOperation(`query ActiveSubscriptions {
  currentAppInstallation {
    activeSubscriptions {
      id
      name
      status
    }
  }
}`)

	appSubscriptionCreateMutation = mustParseOperation(`mutation AppSubscriptionCreate($name: String!, $lineItems: [AppSubscriptionLineItemInput!]!, $returnUrl: URL!, $trialDays: Int, $test: Boolean) {
  appSubscriptionCreate(name: $name, returnUrl: $returnUrl, lineItems: $lineItems, trialDays: $trialDays, test: $test) {
    userErrors {
      field
      message
    }
    appSubscription {
      id
    }
    confirmationUrl
  }
}`)
)

type activeSubscriptionsData struct {
	CurrentAppInstallation *struct {
		ActiveSubscriptions []domain.Subscription `json:"activeSubscriptions"`
	} `json:"currentAppInstallation"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type appSubscriptionCreateData struct {
	AppSubscriptionCreate *struct {
		UserErrors      []userError `json:"userErrors"`
		AppSubscription *struct {
			ID string `json:"id"`
		} `json:"appSubscription"`
		ConfirmationURL string `json:"confirmationUrl"`
	} `json:"appSubscriptionCreate"`
}

// BillingService queries and creates the app's recurring subscription through the
// shop's Admin GraphQL API.
type BillingService struct {
	client   ports.ShopifyClient
	sessions ports.SessionStore
	plan     domain.Plan
	test     bool
	logger   zerolog.Logger
}

// NewBillingService creates a billing service selling plan. test marks created charges
// as test charges.
func NewBillingService(client ports.ShopifyClient, sessions ports.SessionStore, plan domain.Plan, test bool, logger zerolog.Logger) *BillingService {
	return &BillingService{
		client:   client,
		sessions: sessions,
		plan:     plan,
		test:     test,
		logger:   logger.With().Str("component", "billing_service").Logger(),
	}
}

// GetSubscriptionStatus reports whether shop has an ACTIVE subscription. Failures are
// folded into the Error field rather than returned.
func (s *BillingService) GetSubscriptionStatus(ctx context.Context, shop string) domain.SubscriptionStatus {
	subs, err := s.activeSubscriptions(ctx, shop)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Subscription status check failed")
		return domain.SubscriptionStatus{HasSubscription: false, Error: domain.PublicMessage(err)}
	}
	return domain.SubscriptionStatus{
		HasSubscription: domain.HasActiveSubscription(subs),
		Subscriptions:   subs,
	}
}

func (s *BillingService) activeSubscriptions(ctx context.Context, shop string) ([]domain.Subscription, error) {
	session, err := s.session(ctx, shop)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GraphQL(ctx, session.Shop, session.AccessToken, activeSubscriptionsQuery.Document, nil)
	if err != nil {
		return nil, domain.NewBillingError("Failed to query subscriptions", err)
	}

	var data activeSubscriptionsData
	if err := decodeData(resp, &data); err != nil {
		return nil, err
	}
	if data.CurrentAppInstallation == nil {
		return nil, missingPayload(resp)
	}
	return data.CurrentAppInstallation.ActiveSubscriptions, nil
}

// CreateSubscription creates a pending subscription for the plan and returns the URL
// where the merchant approves it.
func (s *BillingService) CreateSubscription(ctx context.Context, shop, returnURL string) (*domain.SubscriptionConfirmation, error) {
	session, err := s.session(ctx, shop)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{
		"name":      s.plan.Name,
		"returnUrl": returnURL,
		"trialDays": s.plan.TrialDays,
		"test":      s.test,
		"lineItems": []map[string]any{{
			"plan": map[string]any{
				"appRecurringPricingDetails": map[string]any{
					"price": map[string]any{
						"amount":       s.plan.PriceString(),
						"currencyCode": s.plan.CurrencyCode,
					},
					"interval": s.plan.Interval,
				},
			},
		}},
	}

	resp, err := s.client.GraphQL(ctx, session.Shop, session.AccessToken, appSubscriptionCreateMutation.Document, variables)
	if err != nil {
		return nil, domain.NewBillingError("Failed to create subscription", err)
	}

	var data appSubscriptionCreateData
	if err := decodeData(resp, &data); err != nil {
		return nil, err
	}
	payload := data.AppSubscriptionCreate
	if payload == nil {
		return nil, missingPayload(resp)
	}
	if len(payload.UserErrors) > 0 {
		messages := make([]string, 0, len(payload.UserErrors))
		for _, ue := range payload.UserErrors {
			messages = append(messages, ue.Message)
		}
		return nil, domain.NewBillingError(strings.Join(messages, ", "), nil)
	}
	if payload.ConfirmationURL == "" {
		return nil, domain.NewBillingError("No confirmation URL returned", nil)
	}

	confirmation := &domain.SubscriptionConfirmation{ConfirmationURL: payload.ConfirmationURL}
	if payload.AppSubscription != nil {
		confirmation.SubscriptionID = payload.AppSubscription.ID
	}

	s.logger.Info().
		Str("shop", session.Shop).
		Str("operation", appSubscriptionCreateMutation.Name).
		Str("subscriptionId", confirmation.SubscriptionID).
		Bool("test", s.test).
		Msg("Subscription created, awaiting merchant approval")

	return confirmation, nil
}

func (s *BillingService) session(ctx context.Context, shop string) (*domain.Session, error) {
	shop = domain.NormalizeShopDomain(shop)
	if err := domain.ValidateShopDomain(shop); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.AccessToken == "" {
		return nil, domain.NewAuthError("No session", nil).WithStatus(http.StatusUnauthorized)
	}
	return session, nil
}

func decodeData(resp *ports.GraphQLResponse, out any) error {
	if resp == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return missingPayload(resp)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return domain.NewBillingError("Malformed billing response", err)
	}
	return nil
}

func missingPayload(resp *ports.GraphQLResponse) error {
	if resp != nil && len(resp.Errors) > 0 && string(resp.Errors) != "null" {
		return domain.NewBillingError(string(resp.Errors), nil)
	}
	return domain.NewBillingError("No data", nil)
}
