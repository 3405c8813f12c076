package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
)

type healthResponse struct {
	Status       string `json:"status"`
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	Agents       int    `json:"agents"`
	Jobs         int    `json:"jobs"`
	Transactions int    `json:"transactions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "healthy",
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Transactions: len(s.sched.Transactions()),
	}
	s.sched.View(func(sc *core.Schedule) {
		resp.Agents = len(sc.Agents())
		resp.Jobs = len(sc.Jobs())
	})
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

// GET /api/v1/clock
func (s *Server) handleGetClock(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.clock())
}

func (s *Server) clock() clockResponse {
	return clockResponse{
		PresentTime:           s.sched.PresentTime(),
		FrozenHorizon:         s.sched.FrozenHorizon(),
		FrozenHorizonDuration: s.sched.FrozenHorizonDuration(),
	}
}

// PUT /api/v1/clock
func (s *Server) handleSetClock(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req clockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PresentTime == nil && req.FrozenHorizonDuration == nil {
		respondValidation(w, reqID, "present_time or frozen_horizon_duration is required")
		return
	}
	if err := s.sched.SetClock(req.PresentTime, req.FrozenHorizonDuration); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, s.clock())
}

// GET /api/v1/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	var resp []agentResponse
	s.sched.View(func(sc *core.Schedule) {
		for _, a := range sc.Agents() {
			resp = append(resp, newAgentResponse(a))
		}
	})
	if resp == nil {
		resp = []agentResponse{}
	}
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

// POST /api/v1/agents
func (s *Server) handleAddAgent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req agentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		respondValidation(w, reqID, "id is required")
		return
	}
	if _, err := s.sched.AddAgent(req.spec()); err != nil {
		respondErr(w, reqID, err)
		return
	}
	var resp agentResponse
	s.sched.View(func(sc *core.Schedule) {
		if a, err := sc.Agent(req.ID); err == nil {
			resp = newAgentResponse(a)
		}
	})
	respondCreated(w, reqID, resp)
}

// GET /api/v1/agents/{id}
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var (
		resp agentResponse
		err  error
	)
	s.sched.View(func(sc *core.Schedule) {
		var a *core.Agent
		if a, err = sc.Agent(chi.URLParam(r, "id")); err == nil {
			resp = newAgentResponse(a)
		}
	})
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, resp)
}

// DELETE /api/v1/agents/{id}
func (s *Server) handleRemoveAgent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.sched.RemoveAgent(id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id})
}

// GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	resp := []jobResponse{}
	s.sched.View(func(sc *core.Schedule) {
		for _, j := range sc.Jobs() {
			resp = append(resp, newJobResponse(j))
		}
	})
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

func jobIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: job id: %v", core.ErrInvalidArgument, err)
	}
	return id, nil
}

// GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, err := jobIDParam(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	var resp jobResponse
	s.sched.View(func(sc *core.Schedule) {
		var j *core.Job
		if j, err = sc.Job(id); err == nil {
			resp = newJobResponse(j)
		}
	})
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, resp)
}

// respondTransaction answers a scheduling request with its outstanding
// transaction.
func respondTransaction(w http.ResponseWriter, reqID string, res *scheduler.Result, err error) {
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, newTransactionResponse(res))
}

// POST /api/v1/jobs
func (s *Server) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req jobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spec, err := req.spec()
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, err := s.sched.Schedule(r.Context(), spec)
	respondTransaction(w, reqID, res, err)
}

// POST /api/v1/jobs/batch
func (s *Server) handleScheduleBatch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	specs, deps, err := req.specs()
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, err := s.sched.ScheduleDependent(r.Context(), specs, deps)
	respondTransaction(w, reqID, res, err)
}

// POST /api/v1/jobs/periodic
func (s *Server) handleSchedulePeriodic(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req periodicRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spec, err := req.spec()
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, err := s.sched.SchedulePeriodic(r.Context(), spec)
	respondTransaction(w, reqID, res, err)
}

// PUT /api/v1/jobs/{id} replaces a committed job by the job in the body.
func (s *Server) handleRescheduleJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, err := jobIDParam(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	var req jobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spec, err := req.spec()
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, err := s.sched.Reschedule(r.Context(), id, spec)
	respondTransaction(w, reqID, res, err)
}

// DELETE /api/v1/jobs/{id}
func (s *Server) handleUnscheduleJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, err := jobIDParam(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, err := s.sched.Unschedule(r.Context(), id)
	respondTransaction(w, reqID, res, err)
}

// GET /api/v1/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	for _, id := range s.sched.Transactions() {
		ids = append(ids, id.String())
	}
	respondOK(w, RequestIDFromContext(r.Context()), ids)
}

func txIDParam(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: transaction id: %v", core.ErrInvalidArgument, err)
	}
	return id, nil
}

// GET /api/v1/transactions/{id}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, err := txIDParam(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	res, ok := s.sched.Transaction(id)
	if !ok {
		respondErr(w, reqID, fmt.Errorf("%w: %s", scheduler.ErrUnknownTransaction, id))
		return
	}
	respondOK(w, reqID, newTransactionResponse(res))
}

// POST /api/v1/transactions/{id}/commit
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	s.finish(w, r, "committed", s.sched.Commit)
}

// POST /api/v1/transactions/{id}/abort
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.finish(w, r, "aborted", s.sched.Abort)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, state string, fn func(ulid.ULID) error) {
	reqID := RequestIDFromContext(r.Context())
	id, err := txIDParam(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if err := fn(id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id.String(), "state": state})
}
