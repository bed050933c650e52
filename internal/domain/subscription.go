package domain

import "github.com/shopspring/decimal"

// SubscriptionStatusActive is the only status that grants access to paid features
const SubscriptionStatusActive = "ACTIVE"

// Subscription is a recurring app charge owned by Shopify; the app never mutates it locally
type Subscription struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmationUrl,omitempty"`
}

// SubscriptionStatus answers whether a shop is currently paying for the app.
// Error is set instead of Subscriptions when the lookup could not complete.
type SubscriptionStatus struct {
	HasSubscription bool           `json:"hasSubscription"`
	Subscriptions   []Subscription `json:"subscriptions,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// HasActiveSubscription reports whether any subscription is ACTIVE
func HasActiveSubscription(subs []Subscription) bool {
	for _, sub := range subs {
		if sub.Status == SubscriptionStatusActive {
			return true
		}
	}
	return false
}

// SubscriptionConfirmation is the result of creating a subscription: the merchant must
// approve the charge at ConfirmationURL before it becomes active.
type SubscriptionConfirmation struct {
	SubscriptionID  string `json:"subscriptionId"`
	ConfirmationURL string `json:"confirmationUrl"`
}

// BillingInterval values accepted by appSubscriptionCreate
const (
	IntervalEvery30Days = "EVERY_30_DAYS"
	IntervalAnnual      = "ANNUAL"
)

// Plan is a recurring pricing plan
type Plan struct {
	Name         string
	Price        decimal.Decimal
	CurrencyCode string
	Interval     string
	TrialDays    int
}

// DefaultPlan is the single plan the app sells
var DefaultPlan = Plan{
	Name:         "Recently Viewed Products Pro",
	Price:        decimal.RequireFromString("2.99"),
	CurrencyCode: "USD",
	Interval:     IntervalEvery30Days,
	TrialDays:    3,
}

// PriceString renders the plan price as a two-decimal string for GraphQL Decimal scalars
func (p Plan) PriceString() string {
	return p.Price.StringFixed(2)
}
