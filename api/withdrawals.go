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
	model2 "github.com/havenpay/haven/api/model"
	"github.com/havenpay/haven/model"
)

func (a Api) CreateWithdrawal(c *gin.Context) {
	var newWithdrawal model2.CreateWithdrawal
	if err := c.ShouldBindJSON(&newWithdrawal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newWithdrawal.ValidateCreateWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.haven.InitiateCryptoWithdrawal(c.Request.Context(), haven.CryptoWithdrawalRequest{
		OwnerID:  newWithdrawal.OwnerID,
		Amount:   newWithdrawal.Amount,
		Currency: newWithdrawal.Currency,
		Network:  newWithdrawal.Network,
		Address:  newWithdrawal.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetWithdrawal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.haven.GetRecord(c.Request.Context(), model.KindWithdrawal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetWithdrawals(c *gin.Context) {
	a.listRecords(c, model.KindWithdrawal)
}
