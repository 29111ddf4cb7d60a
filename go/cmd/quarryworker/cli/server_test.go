/*
Copyright 2024 The Quarry Authors.

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

package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const valuesFragment = `{
	"root": {
		"@type": "values",
		"id": "0",
		"outputVariables": [{"name": "x", "type": "bigint"}],
		"rows": []
	},
	"partitioningScheme": {
		"partitioning": {
			"handle": {
				"connectorHandle": {
					"@type": "system-partitioning",
					"partitioning": "SINGLE",
					"function": "SINGLE"
				}
			},
			"arguments": []
		},
		"outputLayout": [{"name": "x", "type": "bigint"}],
		"replicateNullsAndAny": false
	},
	"stageExecutionDescriptor": {
		"stageExecutionStrategy": "UNGROUPED_EXECUTION",
		"totalLifespans": 1,
		"groupedExecutionScanNodes": []
	}
}`

func testRouter(s *server) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/v1/info", s.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/v1/task/{taskID}/plan", s.handlePlan).Methods(http.MethodPost)
	return router
}

func postPlan(t *testing.T, s *server, taskID, envelope string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/task/"+taskID+"/plan", strings.NewReader(envelope))
	rec := httptest.NewRecorder()
	testRouter(s).ServeHTTP(rec, req)
	return rec
}

func TestHandlePlan(t *testing.T) {
	s := newServer("", "")

	rec := postPlan(t, s, "q1.2.0.7", `{"planFragment": `+valuesFragment+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		TaskID     string `json:"taskId"`
		RootNodeID string `json:"rootNodeId"`
		Grouped    bool   `json:"grouped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "q1.2.0.7", resp.TaskID)
	assert.Equal(t, "root", resp.RootNodeID)
	assert.False(t, resp.Grouped)
	assert.Equal(t, int64(1), s.tasksPlanned.Load())
}

func TestHandlePlanBadTaskID(t *testing.T) {
	s := newServer("", "")

	rec := postPlan(t, s, "q1", `{"planFragment": `+valuesFragment+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), s.tasksPlanned.Load())
}

func TestHandlePlanMissingFragment(t *testing.T) {
	s := newServer("", "")

	rec := postPlan(t, s, "q1.2.0.7", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInfo(t *testing.T) {
	s := newServer("", "")

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	rec := httptest.NewRecorder()
	testRouter(s).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, s.workerID.String(), resp["workerId"])
}
