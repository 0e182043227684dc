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
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/havenpay/haven/api/model"
	"github.com/havenpay/haven/model"
)

func (a Api) CreateCryptoDeposit(c *gin.Context) {
	var newDeposit model2.CreateCryptoDeposit
	if err := c.ShouldBindJSON(&newDeposit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newDeposit.ValidateCreateCryptoDeposit(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.haven.InitiateCryptoDeposit(c.Request.Context(), newDeposit.OwnerID, newDeposit.Amount, newDeposit.Currency)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) CreateMobileMoneyDeposit(c *gin.Context) {
	var newDeposit model2.CreateMobileMoneyDeposit
	if err := c.ShouldBindJSON(&newDeposit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newDeposit.ValidateCreateMobileMoneyDeposit(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.haven.InitiateMobileMoneyDeposit(c.Request.Context(), newDeposit.OwnerID, newDeposit.Amount, newDeposit.Currency, newDeposit.PhoneNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetDeposit(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.haven.GetRecord(c.Request.Context(), model.KindDeposit, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetDeposits(c *gin.Context) {
	a.listRecords(c, model.KindDeposit)
}

func (a Api) listRecords(c *gin.Context, kind string) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id query parameter is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	resp, err := a.haven.GetRecordsByOwner(c.Request.Context(), kind, ownerID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
