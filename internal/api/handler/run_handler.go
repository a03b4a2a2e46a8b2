package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"trip-pipeline/internal/model"
	"trip-pipeline/internal/pipeline"
	"trip-pipeline/internal/store"

	"github.com/google/uuid"
)

// CreateRun starts a new pipeline run
// @Summary Create a new run
// @Description Submit a batch run for one business date; the pipeline executes asynchronously
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid run spec"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := spec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	go func() {
		// The run outlives the request; its own timeout bounds it.
		pipeline.Run(context.Background(), runID, spec)
	}()

	resp := map[string]interface{}{
		"runID":        runID,
		"businessDate": spec.BusinessDate,
		"status":       model.StateInit,
		"createdAt":    time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// ListRuns retrieves all pipeline runs
// @Summary List all runs
// @Description Get all pipeline runs with their current state
// @Tags runs
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves one run
// @Summary Get run
// @Description Retrieve spec, state, and summary of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}
	run, err := store.GetRun(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Run not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunSummary retrieves the run summary counts
// @Summary Get run summary
// @Description Exposed counts: read, valid, rejected by reason, duplicates collapsed, join misses, partitions and aggregate rows written
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary "Run summary"
// @Failure 404 {object} map[string]interface{} "Summary not available"
// @Router /runs/{id}/summary [get]
func GetRunSummary(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/summary")
	if !ok {
		return
	}
	summary, err := store.GetRunSummary(runID)
	if err != nil || summary == nil {
		http.Error(w, "Summary not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetRunRejects retrieves the quarantined records of a run
// @Summary Get rejected records
// @Description Records quarantined during read or validation, with reason codes
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RejectedRecord "Rejected records"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/rejects [get]
func GetRunRejects(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/rejects")
	if !ok {
		return
	}
	rejects, err := store.GetRejectedRecords(runID)
	if err != nil {
		http.Error(w, "Failed to fetch rejected records", http.StatusInternalServerError)
		return
	}
	if rejects == nil {
		rejects = []model.RejectedRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rejects)
}

// GetRunErrors retrieves the fatal errors of a run
// @Summary Get run errors
// @Description Fatal errors recorded for a run, with the stage they occurred in
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/errors")
	if !ok {
		return
	}
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to fetch run errors", http.StatusInternalServerError)
		return
	}
	if errs == nil {
		errs = []map[string]interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(errs)
}

func runIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	const prefix = "/api/v1/runs/"
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}
	runID := strings.TrimSuffix(path[len(prefix):], suffix)
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}
