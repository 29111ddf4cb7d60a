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
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/log"
	"github.com/quarrydb/quarry/go/quarry/lowering"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/serverstats"
	"github.com/quarrydb/quarry/go/quarry/wire"
)

const maxPlanBytes = 64 << 20

// server holds the worker's plan intake state and doubles as the runtime
// source for stats sampling.
type server struct {
	workerID    uuid.UUID
	startedAt   time.Time
	shuffleName string
	shuffleInfo string

	tasksPlanned atomic.Int64
	tasksFailed  atomic.Int64
}

func newServer(shuffleName, shuffleInfo string) *server {
	return &server{
		workerID:    uuid.New(),
		startedAt:   time.Now(),
		shuffleName: shuffleName,
		shuffleInfo: shuffleInfo,
	}
}

// Snapshot implements serverstats.RuntimeSource. Execution counters stay
// zero until the execution engine feeds them.
func (s *server) Snapshot() serverstats.RuntimeSnapshot {
	return serverstats.RuntimeSnapshot{
		TasksPlanned: s.tasksPlanned.Load(),
		TasksFailed:  s.tasksFailed.Load(),
	}
}

func (s *server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"workerId": s.workerID.String(),
		"uptime":   time.Since(s.startedAt).String(),
	})
}

// handlePlan accepts one task's plan envelope, lowers it and reports the
// lowered fragment's shape. The envelope carries the fragment under
// "planFragment" and, for writing queries, the write info under
// "tableWriteInfo".
func (s *server) handlePlan(w http.ResponseWriter, r *http.Request) {
	taskID, err := lowering.ParseTaskID(mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	envelope := gjson.ParseBytes(body)
	rawFragment := envelope.Get("planFragment")
	if !rawFragment.Exists() {
		writeError(w, http.StatusBadRequest, qerrors.Invariantf("plan envelope has no planFragment"))
		return
	}
	fragment, err := wire.DecodeFragment([]byte(rawFragment.Raw))
	if err != nil {
		s.tasksFailed.Add(1)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var writeInfo *wire.TableWriteInfo
	if rawWriteInfo := envelope.Get("tableWriteInfo"); rawWriteInfo.Exists() {
		writeInfo, err = wire.DecodeTableWriteInfo([]byte(rawWriteInfo.Raw))
		if err != nil {
			s.tasksFailed.Add(1)
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	conv := exprconv.New()
	var tr *lowering.Translator
	if s.shuffleName != "" {
		tr = lowering.NewBatchTranslator(conv, writeInfo, taskID, s.shuffleName, s.shuffleInfo)
	} else {
		tr = lowering.NewTranslator(conv, writeInfo, taskID)
	}

	lowered, err := tr.TranslateFragment(*fragment)
	if err != nil {
		s.tasksFailed.Add(1)
		writeError(w, statusOf(err), err)
		return
	}
	s.tasksPlanned.Add(1)

	log.Infof("task %s.%d.%d.%d: lowered fragment rooted at %s",
		taskID.QueryID, taskID.StageID, taskID.StageExecutionID, taskID.ID, lowered.Root.ID())
	writeJSON(w, http.StatusOK, map[string]any{
		"taskId":      mux.Vars(r)["taskID"],
		"rootNodeId":  lowered.Root.ID(),
		"grouped":     lowered.Strategy == exec.StrategyGrouped,
		"splitGroups": lowered.NumSplitGroups,
	})
}

// statusOf maps lowering error codes onto HTTP statuses: a plan this
// worker cannot run is the coordinator's problem, a violated invariant is
// ours.
func statusOf(err error) int {
	switch qerrors.CodeOf(err) {
	case qerrors.CodeUnsupportedConstruct:
		return http.StatusBadRequest
	case qerrors.CodeInvariantViolation:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
