// Package mcp exposes scan, report and baseline operations to AI
// assistants over the Model Context Protocol on stdio.
package mcp

import (
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/log"
	"github.com/hardscan/hardscan/internal/scan"
)

const (
	serverName    = "hardscan"
	serverVersion = "1.0.0"
)

// Server wraps the stdio MCP server around the scan engine. A live
// server runs scans on demand; a read-only server answers from a
// pre-generated report and refuses to scan, so the serving process
// never needs scan privileges.
type Server struct {
	cfg *config.Config
	srv *server.MCPServer

	mu       sync.Mutex
	current  *scan.Result
	readOnly bool
}

// NewServer creates a live server that can run scans
func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	s := &Server{cfg: cfg}
	s.srv = s.newMCPServer()
	return s, nil
}

// NewServerWithData creates a read-only server answering from a report
// generated beforehand, typically by a privileged scan on the same host
func NewServerWithData(raw map[string]interface{}) (*Server, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty report data")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "re-encoding report: %v", err)
	}
	var res scan.Result
	if err := json.Unmarshal(buf, &res); err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, "report is not a scan result: %v", err)
	}
	if res.RunID == "" && res.Summary == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "report carries neither run id nor summary")
	}

	cfg, err := config.Load()
	if err != nil {
		// read-only mode stays up even without a usable config
		log.Debugf("config unavailable, using defaults: %v", err)
		cfg = config.Default()
	}
	s := &Server{cfg: cfg, current: &res, readOnly: true}
	s.srv = s.newMCPServer()
	return s, nil
}

// Serve runs the stdio transport until the client disconnects
func (s *Server) Serve() error {
	return server.ServeStdio(s.srv)
}

// ReadOnly reports whether the server answers from pre-loaded data
func (s *Server) ReadOnly() bool {
	return s.readOnly
}

func (s *Server) newMCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	srv.AddTool(runScanTool(), s.handleRunScan)
	srv.AddTool(getReportTool(), s.handleGetReport)
	srv.AddTool(generatePlanTool(), s.handleGeneratePlan)
	srv.AddTool(baselineDiffTool(), s.handleBaselineDiff)
	srv.AddTool(listExceptionsTool(), s.handleListExceptions)
	return srv
}

// snapshot returns the report the answer tools work from
func (s *Server) snapshot() *scan.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Server) store(res *scan.Result) {
	s.mu.Lock()
	s.current = res
	s.mu.Unlock()
}
