package gateway

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"termdeck/internal/browse"
	"termdeck/internal/dbpool"
	apperr "termdeck/internal/errors"
	"termdeck/internal/runner"
)

type execRequest struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd"`
}

type execResponse struct {
	Output       string `json:"output"`
	NewDirectory string `json:"newDirectory,omitempty"`
	Success      bool   `json:"success"`
	ExitCode     int    `json:"exitCode"`
}

type browseRequest struct {
	Path string `json:"path"`
}

type runRequest struct {
	FilePath string   `json:"filePath"`
	Args     []string `json:"args"`
	Cwd      string   `json:"cwd"`
}

type runResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Code    int    `json:"code"`
}

type dbConnectRequest struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSL      bool   `json:"ssl"`
}

type dbQueryRequest struct {
	ConnectionID string `json:"connectionId"`
	SQL          string `json:"sql"`
	MaxRows      int    `json:"maxRows"`
	Timeout      int    `json:"timeout"`
}

type dbDisconnectRequest struct {
	ConnectionID string `json:"connectionId"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps taxonomy codes to HTTP statuses. Error payloads carry
// the stable code and an optional hint; never raw credentials.
func respondError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInvalidMessage, apperr.CodeNotImplemented, apperr.CodeConnection:
		status = http.StatusBadRequest
	case apperr.CodeTimeout:
		status = http.StatusRequestTimeout
	}

	body := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"code":    string(code),
	}
	if details := apperr.DetailsOf(err); details != "" {
		body["details"] = details
	}
	respondJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, apperr.InvalidMessage("invalid request body"))
		return false
	}
	return true
}

// handleExec runs a one-shot command with the 30s default timeout. A
// non-zero exit code is a normal response, not an HTTP error.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Command == "" {
		respondError(w, apperr.InvalidMessage("command is required"))
		return
	}
	if req.Cwd == "" {
		req.Cwd, _ = os.Getwd()
	}

	start := time.Now()
	res, err := runner.Run(r.Context(), req.Command, req.Cwd, 0)
	if err != nil {
		respondError(w, err)
		return
	}

	if s.hist != nil {
		if histErr := s.hist.Append(req.Command, req.Cwd, res.ExitCode, time.Since(start)); histErr != nil {
			s.log.Warn("history append failed", "err", histErr)
		}
	}

	resp := execResponse{
		Output:   res.Stdout + res.Stderr,
		Success:  res.ExitCode == 0,
		ExitCode: res.ExitCode,
	}

	// Directory changes are inferred textually, then confirmed with a stat
	// so a typoed cd cannot move the UI into a phantom directory.
	if res.ExitCode == 0 {
		if next, changed := runner.NextWorkingDir(req.Cwd, req.Command); changed {
			if info, statErr := os.Stat(next); statErr == nil && info.IsDir() {
				resp.NewDirectory = next
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, apperr.InvalidMessage("path is required"))
		return
	}

	listing, err := browse.List(req.Path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FilePath == "" {
		respondError(w, apperr.InvalidMessage("filePath is required"))
		return
	}
	if req.Cwd == "" {
		req.Cwd, _ = os.Getwd()
	}

	start := time.Now()
	res, err := runner.RunFile(r.Context(), req.FilePath, req.Args, req.Cwd, 0)
	if err != nil {
		respondError(w, err)
		return
	}

	if s.hist != nil {
		if histErr := s.hist.Append(req.FilePath, req.Cwd, res.ExitCode, time.Since(start)); histErr != nil {
			s.log.Warn("history append failed", "err", histErr)
		}
	}

	respondJSON(w, http.StatusOK, runResponse{
		Success: res.ExitCode == 0,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		Code:    res.ExitCode,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"entries": []struct{}{}, "count": 0})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.hist.Recent(limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleDBConnect(w http.ResponseWriter, r *http.Request) {
	var req dbConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" || req.Host == "" {
		respondError(w, apperr.InvalidMessage("type and host are required"))
		return
	}

	conn, err := s.pools.Connect(r.Context(), dbpool.Config{
		Type:     req.Type,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		SSL:      req.SSL,
	}, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"connectionId": conn.ID,
		"version":      conn.Version,
		"database":     conn.Config.Database,
	})
}

func (s *Server) handleDBQuery(w http.ResponseWriter, r *http.Request) {
	var req dbQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectionID == "" || req.SQL == "" {
		respondError(w, apperr.InvalidMessage("connectionId and sql are required"))
		return
	}

	res, err := s.pools.Query(r.Context(), req.ConnectionID, req.SQL, req.MaxRows,
		time.Duration(req.Timeout)*time.Millisecond)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"rows":          res.Rows,
		"rowCount":      res.RowCount,
		"columns":       res.Columns,
		"executionTime": res.ExecutionTimeMs,
		"hasMoreRows":   res.HasMoreRows,
	})
}

func (s *Server) handleDBDisconnect(w http.ResponseWriter, r *http.Request) {
	var req dbDisconnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectionID == "" {
		respondError(w, apperr.InvalidMessage("connectionId is required"))
		return
	}

	s.pools.Disconnect(req.ConnectionID)
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleDBList(w http.ResponseWriter, r *http.Request) {
	conns := s.pools.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"connections": conns,
		"count":       len(conns),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.registry.Remove(r.PathValue("id"))
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"sessions":    s.registry.Count(),
		"connections": s.pools.Count(),
	})
}
