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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenpay/haven"
	"github.com/havenpay/haven/api/middleware"
	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/gateway"
	"github.com/havenpay/haven/internal/apierror"
)

type Api struct {
	haven  *haven.Haven
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/deposits/crypto", a.CreateCryptoDeposit)
	router.POST("/deposits/mobile-money", a.CreateMobileMoneyDeposit)
	router.GET("/deposits/:id", a.GetDeposit)
	router.GET("/deposits", a.GetDeposits)

	router.POST("/withdrawals", a.CreateWithdrawal)
	router.GET("/withdrawals/:id", a.GetWithdrawal)
	router.GET("/withdrawals", a.GetWithdrawals)

	router.GET("/balances/:owner_id", a.GetBalances)

	router.POST("/webhooks/cryptomus/payment", a.CryptomusPaymentWebhook)
	router.POST("/webhooks/cryptomus/payout", a.CryptomusPayoutWebhook)
	router.POST("/webhooks/kopokopo", a.KopokopoWebhook)
	return a.router
}

func NewAPI(h *haven.Haven) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		// Webhooks authenticate with provider signatures, not the secret key.
		r.Use(middleware.SecretKeyAuthExceptWebhooks())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{haven: h, router: r}
}

// respondError writes the error response for a handler. API errors carry their
// own HTTP status, gateway failures are a bad gateway, anything else is an
// internal error.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": apiErr.Message})
		return
	}
	if gateway.IsProvider(err) || gateway.IsTransport(err) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
