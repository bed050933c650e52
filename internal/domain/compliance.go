package domain

import (
	"encoding/json"
	"net/http"
)

// CustomerRef identifies the customer a privacy request is about
type CustomerRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CustomerPrivacyRequest is the body of customers/data_request and customers/redact
type CustomerPrivacyRequest struct {
	ShopID          int64       `json:"shop_id"`
	ShopDomain      string      `json:"shop_domain"`
	Customer        CustomerRef `json:"customer"`
	OrdersRequested []int64     `json:"orders_requested,omitempty"`
	OrdersToRedact  []int64     `json:"orders_to_redact,omitempty"`
	DataRequest     *struct {
		ID int64 `json:"id"`
	} `json:"data_request,omitempty"`
}

// ShopRedactRequest is the body of shop/redact, sent 48 hours after uninstall
type ShopRedactRequest struct {
	ShopID     int64  `json:"shop_id"`
	ShopDomain string `json:"shop_domain"`
}

// ShopUpdate is the subset of the shop/update body the app reads
type ShopUpdate struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Domain          string `json:"domain"`
	MyshopifyDomain string `json:"myshopify_domain"`
	PlanName        string `json:"plan_name"`
	Currency        string `json:"currency"`
}

// DecodePayload parses a webhook body into out. An empty body leaves out untouched.
func DecodePayload(payload []byte, out any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

// VerifyPayloadShop rejects a payload that names a different shop than the delivery
// header. The header is not covered by the signature, so destructive work checks both.
// An empty payloadShop is accepted.
func VerifyPayloadShop(headerShop, payloadShop string) error {
	if payloadShop == "" {
		return nil
	}
	if NormalizeShopDomain(payloadShop) != NormalizeShopDomain(headerShop) {
		return NewSignatureError("Shop mismatch", nil).WithStatus(http.StatusBadRequest)
	}
	return nil
}
