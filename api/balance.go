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
)

func (a Api) GetBalances(c *gin.Context) {
	ownerID, passed := c.Params.Get("owner_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required. pass owner_id in the route /:owner_id"})
		return
	}

	resp, err := a.haven.GetBalances(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
