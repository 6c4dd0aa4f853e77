// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"fmt"
	"net/http"

	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/czcorpus/kudosizer/payload"
	"github.com/gin-gonic/gin"
)

type predictResponse struct {
	PredictedSeconds float64 `json:"predictedSeconds"`
}

func (api *apiServer) handleVersion(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, api.version)
}

// handlePredict encodes one request record and returns the predicted
// job duration. Encoding is total, so any well-formed JSON body
// produces an answer; unknown categorical values fall back to their
// vocabulary defaults rather than failing.
func (api *apiServer) handlePredict(ctx *gin.Context) {
	var rec payload.RequestPayload
	if err := ctx.BindJSON(&rec); err != nil {
		uniresp.RespondWithErrorJSON(ctx, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	resp := predictResponse{
		PredictedSeconds: api.predictor.PredictSeconds(rec),
	}
	uniresp.WriteJSONResponse(ctx.Writer, resp)
}
