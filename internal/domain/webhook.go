package domain

import "time"

// Webhook topics the app subscribes to or is required to answer
const (
	TopicAppUninstalled       = "app/uninstalled"
	TopicShopUpdate           = "shop/update"
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// ComplianceTopics are the mandatory privacy topics every public app must acknowledge
var ComplianceTopics = []string{TopicCustomersDataRequest, TopicCustomersRedact, TopicShopRedact}

// WebhookEvent is a verified inbound webhook. It is built once at the gateway boundary
// from the request headers and the raw, unparsed body.
type WebhookEvent struct {
	ID         string    `json:"id" bson:"webhookId"`
	Topic      string    `json:"topic" bson:"topic"`
	Shop       string    `json:"shop" bson:"shop"`
	APIVersion string    `json:"apiVersion,omitempty" bson:"apiVersion,omitempty"`
	Signature  string    `json:"-" bson:"-"`
	Payload    []byte    `json:"-" bson:"-"`
	Verified   bool      `json:"verified" bson:"verified"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}

// WebhookResult is what a topic handler acknowledges back to Shopify
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookSubscription is a webhook registered on a shop through the Admin API
type WebhookSubscription struct {
	ID      uint64 `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}
