package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

// programResponse is the JSON representation of a program.
type programResponse struct {
	irrigation.Attributes
	Running           bool           `json:"running"`
	TriggeredManually bool           `json:"triggered_manually"`
	StartTime         string         `json:"start_time"`
	Zones             []zoneResponse `json:"zones"`
}

// zoneResponse is the JSON representation of a zone's configuration.
type zoneResponse struct {
	Name     string `json:"name"`
	Actuator string `json:"actuator"`
	Icon     string `json:"icon,omitempty"`
}

func toProgramResponse(p *irrigation.Program) programResponse {
	cfg := p.Config()
	state := p.State()

	zones := make([]zoneResponse, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zones = append(zones, zoneResponse{Name: z.Name, Actuator: z.Actuator, Icon: z.Icon})
	}

	return programResponse{
		Attributes:        p.Attributes(),
		Running:           state.Running,
		TriggeredManually: state.TriggeredManually,
		StartTime:         cfg.StartTime,
		Zones:             zones,
	}
}

// handleListPrograms returns every registered program.
func (s *Server) handleListPrograms(w http.ResponseWriter, _ *http.Request) {
	programs := s.programs.List()
	resp := make([]programResponse, 0, len(programs))
	for _, p := range programs {
		resp = append(resp, toProgramResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"programs": resp,
		"count":    len(resp),
	})
}

// handleGetProgram returns a single program.
func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := s.programs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeProgramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramResponse(p))
}

// handleStartProgram starts a manual run. A program that is already running
// answers 409 and keeps its current run.
func (s *Server) handleStartProgram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	started, err := s.programs.Start(id, true)
	if err != nil {
		writeProgramError(w, err)
		return
	}
	if !started {
		writeError(w, http.StatusConflict, ErrCodeConflict, "program is already running")
		return
	}

	s.logger.Info("program started via API", "program_id", id)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"program_id": id,
		"status":     "started",
	})
}

// handleStopProgram requests a stop. Stopping an idle program is a no-op.
func (s *Server) handleStopProgram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.programs.Stop(r.Context(), id); err != nil {
		writeProgramError(w, err)
		return
	}

	s.logger.Info("program stopped via API", "program_id", id)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"program_id": id,
		"status":     "stopping",
	})
}

// handleStopPrograms stops every program except the one named by ?ignore=.
func (s *Server) handleStopPrograms(w http.ResponseWriter, r *http.Request) {
	ignore := r.URL.Query().Get("ignore")
	s.programs.StopAllExcept(r.Context(), ignore)

	s.logger.Info("programs stopped via API", "ignore", ignore)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ignore": ignore,
		"status": "stopping",
	})
}

// handleListRuns returns the run history of a program, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.programs.Get(id); err != nil {
		writeProgramError(w, err)
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run history is not available")
		return
	}

	limit := irrigation.DefaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, irrigation.MaxRunLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to list runs", "program_id", id, "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []irrigation.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one recorded run of a program.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.programs.Get(id); err != nil {
		writeProgramError(w, err)
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run history is not available")
		return
	}

	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, irrigation.ErrRunNotFound) {
			writeNotFound(w, "run not found")
			return
		}
		s.logger.Error("failed to get run", "program_id", id, "error", err)
		writeInternalError(w, "failed to get run")
		return
	}
	// Run ids are global; a run of another program is not found here.
	if run.ProgramID != id {
		writeNotFound(w, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// writeProgramError maps registry errors to HTTP responses.
func writeProgramError(w http.ResponseWriter, err error) {
	if errors.Is(err, irrigation.ErrProgramNotFound) {
		writeNotFound(w, "program not found")
		return
	}
	writeInternalError(w, err.Error())
}
