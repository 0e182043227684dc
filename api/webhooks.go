/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
	"github.com/havenpay/haven/internal/signature"
	"github.com/havenpay/haven/model"
)

const kopokopoSignatureHeader = "X-KopoKopo-Signature"

// webhookAck is the envelope every webhook route answers with. Providers only
// look at the HTTP status, but a body that says what happened helps when
// replaying deliveries by hand.
type webhookAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func ackOK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, webhookAck{Success: true, Message: message})
}

func ackError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if status == http.StatusOK {
		// Replayed delivery: success-with-no-op so the provider stops
		// redelivering.
		ackOK(c, "event already processed")
		return
	}
	c.JSON(status, webhookAck{Success: false, Error: err.Error()})
}

// cryptomusCallback is the subset of the provider callback the handler needs.
type cryptomusCallback struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CryptomusPaymentWebhook reconciles a crypto deposit callback. The signature
// covers the payload with the sign field removed, byte for byte as delivered,
// digested over sorted keys.
func (a Api) CryptomusPaymentWebhook(c *gin.Context) {
	a.cryptomusWebhook(c, model.KindDeposit)
}

// CryptomusPayoutWebhook reconciles a crypto withdrawal callback. Same shape
// as the payment callback but signed with the payout key over the payload in
// delivered order.
func (a Api) CryptomusPayoutWebhook(c *gin.Context) {
	a.cryptomusWebhook(c, model.KindWithdrawal)
}

func (a Api) cryptomusWebhook(c *gin.Context, kind string) {
	conf, err := config.Fetch()
	if err != nil {
		ackError(c, err)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "could not read webhook body", err))
		return
	}

	stripped, sign, err := signature.StripField(raw, "sign")
	if err != nil {
		ackError(c, apierror.NewAPIError(apierror.ErrUnauthorized, "webhook carries no signature", err))
		return
	}

	secret := conf.Cryptomus.PaymentKey
	mode := signature.SortedJSON
	if kind == model.KindWithdrawal {
		secret = conf.Cryptomus.PayoutKey
		mode = signature.RawJSON
	}

	ok, err := signature.Verify(stripped, sign, secret, mode)
	if err != nil || !ok {
		ackError(c, apierror.NewAPIError(apierror.ErrUnauthorized, "webhook signature verification failed", err))
		return
	}

	var callback cryptomusCallback
	if err := json.Unmarshal(stripped, &callback); err != nil {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "could not parse webhook payload", err))
		return
	}
	if callback.OrderID == "" {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "webhook payload carries no order_id", nil))
		return
	}

	// Unknown orders are rejected, never implicitly created. The provider
	// cannot open ledger records.
	record, err := a.haven.GetRecord(c.Request.Context(), kind, callback.OrderID)
	if err != nil {
		ackError(c, err)
		return
	}

	status := gateway.MapCryptomusStatus(callback.Status)
	if err := a.haven.ApplyPaymentStatus(c.Request.Context(), gateway.ProviderCryptomus, callback.OrderID, record, status); err != nil {
		ackError(c, err)
		return
	}
	ackOK(c, "event processed")
}

// kopokopoCallback mirrors the provider's nested delivery shape.
type kopokopoCallback struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Self string `json:"self"`
	} `json:"_links"`
}

// KopokopoWebhook reconciles an STK push callback. Authenticity is an HMAC
// over the raw body carried in the X-KopoKopo-Signature header.
func (a Api) KopokopoWebhook(c *gin.Context) {
	conf, err := config.Fetch()
	if err != nil {
		ackError(c, err)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "could not read webhook body", err))
		return
	}

	sign := c.GetHeader(kopokopoSignatureHeader)
	if sign == "" {
		ackError(c, apierror.NewAPIError(apierror.ErrUnauthorized, "webhook carries no signature", nil))
		return
	}
	ok, err := signature.Verify(raw, sign, conf.Kopokopo.ApiKey, signature.HMACSHA256)
	if err != nil || !ok {
		ackError(c, apierror.NewAPIError(apierror.ErrUnauthorized, "webhook signature verification failed", err))
		return
	}

	var callback kopokopoCallback
	if err := json.Unmarshal(raw, &callback); err != nil {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "could not parse webhook payload", err))
		return
	}

	resourceID := callback.Data.ID
	if resourceID == "" {
		resourceID = gateway.ResourceIDFromSelfLink(callback.Links.Self)
	}
	if resourceID == "" {
		ackError(c, apierror.NewAPIError(apierror.ErrBadRequest, "webhook payload carries no resource id", nil))
		return
	}

	record, err := a.haven.GetRecordByProviderRef(c.Request.Context(), model.KindDeposit, resourceID)
	if err != nil {
		ackError(c, err)
		return
	}

	status := gateway.MapKopokopoStatus(callback.Data.Attributes.Status)
	if err := a.haven.ApplyPaymentStatus(c.Request.Context(), gateway.ProviderKopokopo, resourceID, record, status); err != nil {
		ackError(c, err)
		return
	}
	ackOK(c, "event processed")
}
