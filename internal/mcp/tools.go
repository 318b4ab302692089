package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/baseline"
	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/harden"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/report"
	"github.com/hardscan/hardscan/internal/scan"
)

func runScanTool() mcpgo.Tool {
	return mcpgo.NewTool("run_scan",
		mcpgo.WithDescription("Run a compliance scan against this host and keep the result for the other tools. Returns the scored summary and the failed controls."),
		mcpgo.WithString("profile_dir",
			mcpgo.Description("Directory of profile YAML files, defaults to the configured profile directory")),
		mcpgo.WithNumber("level",
			mcpgo.Description("Hardening level cap, 1 or 2")),
		mcpgo.WithString("tags",
			mcpgo.Description("Comma-separated tags, only controls carrying one of them run")),
	)
}

func getReportTool() mcpgo.Tool {
	return mcpgo.NewTool("get_report",
		mcpgo.WithDescription("Render the current scan report."),
		mcpgo.WithString("format",
			mcpgo.Description(fmt.Sprintf("Output format, one of: %s", strings.Join(report.Formats(), ", ")))),
	)
}

func generatePlanTool() mcpgo.Tool {
	return mcpgo.NewTool("generate_plan",
		mcpgo.WithDescription("Turn the failed controls of the current report into an ordered remediation plan. Nothing is executed."),
		mcpgo.WithString("min_severity",
			mcpgo.Description("Drop steps below this severity: critical, high, medium or low")),
	)
}

func baselineDiffTool() mcpgo.Tool {
	return mcpgo.NewTool("baseline_diff",
		mcpgo.WithDescription("Diff the current report against the stored baseline and list every drift."),
		mcpgo.WithString("baseline_path",
			mcpgo.Description("Baseline file, defaults to the standard state location")),
	)
}

func listExceptionsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_exceptions",
		mcpgo.WithDescription("List the control waivers, service exceptions and waived drift codes configured on this host."),
	)
}

func (s *Server) handleRunScan(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.readOnly {
		return mcpgo.NewToolResultError("server answers from a pre-generated report and cannot scan, run hardscan scan on the host instead"), nil
	}

	args := req.GetArguments()
	dir := s.cfg.ProfileDir
	if v, ok := args["profile_dir"].(string); ok && v != "" {
		dir = v
	}
	var opts scan.Options
	if v, ok := args["level"].(float64); ok && v > 0 {
		opts.Level = int(v)
	}
	if v, ok := args["tags"].(string); ok && v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Tags = append(opts.Tags, tag)
			}
		}
	}

	set, err := s.loadSet(dir)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	res, err := scan.New(s.cfg).Run(ctx, set, opts)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	s.store(res)

	return jsonResult(digest(res))
}

func (s *Server) handleGetReport(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	res := s.snapshot()
	if res == nil {
		return mcpgo.NewToolResultError("no report loaded yet, call run_scan first"), nil
	}

	format := report.FormatText
	if v, ok := req.GetArguments()["format"].(string); ok && v != "" {
		format = v
	}
	f, err := report.NewFormatter(format, false)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	out, err := f.Render(res)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return mcpgo.NewToolResultText(out), nil
}

func (s *Server) handleGeneratePlan(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	res := s.snapshot()
	if res == nil {
		return mcpgo.NewToolResultError("no report loaded yet, call run_scan first"), nil
	}

	minSeverity := ""
	if v, ok := req.GetArguments()["min_severity"].(string); ok {
		minSeverity = v
	}
	plan, err := harden.Build(res, minSeverity)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return mcpgo.NewToolResultText(plan.Render()), nil
}

func (s *Server) handleBaselineDiff(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	res := s.snapshot()
	if res == nil {
		return mcpgo.NewToolResultError("no report loaded yet, call run_scan first"), nil
	}
	if len(res.Controls) == 0 && res.Summary != nil && res.Summary.Total > 0 {
		return mcpgo.NewToolResultError("report has no per-control detail, regenerate it with hardscan scan --format json --verbose"), nil
	}

	path := baseline.DefaultPath()
	if v, ok := req.GetArguments()["baseline_path"].(string); ok && v != "" {
		path = v
	}
	base, err := baseline.Load(path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return mcpgo.NewToolResultError(fmt.Sprintf("no baseline at %s, create one with hardscan baseline create", path)), nil
		}
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(baseline.Compare(base, res))
}

func (s *Server) handleListExceptions(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	exc := s.cfg.Exceptions
	if exc == nil || (len(exc.Controls) == 0 && len(exc.Services) == 0 && len(exc.AlertCodes) == 0) {
		return mcpgo.NewToolResultText("no exceptions configured"), nil
	}
	// exceptions render as YAML, matching the file operators edit
	buf, err := yaml.Marshal(exc)
	if err != nil {
		return mcpgo.NewToolResultError(errors.Wrap(errors.ErrParseFailure, "encoding exceptions: %v", err).Error()), nil
	}
	return mcpgo.NewToolResultText(string(buf)), nil
}

// digest is the run_scan response, the summary without the full control
// list
func digest(res *scan.Result) interface{} {
	return struct {
		RunID   string               `json:"run_id"`
		Profile string               `json:"profile"`
		Level   int                  `json:"level"`
		Grade   string               `json:"grade"`
		Summary *scan.Summary        `json:"summary"`
		Failed  []scan.FailedControl `json:"failed"`
	}{res.RunID, res.Profile, res.Level, res.Summary.Grade, res.Summary, res.Failed}
}

func jsonResult(v interface{}) (*mcpgo.CallToolResult, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpgo.NewToolResultError(errors.Wrap(errors.ErrParseFailure, "encoding response: %v", err).Error()), nil
	}
	return mcpgo.NewToolResultText(string(buf)), nil
}

func (s *Server) loadSet(dir string) (*profile.Set, error) {
	roots, err := profile.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	var overrides map[string]interface{}
	if s.cfg.AttributesFile != "" {
		overrides, err = profile.LoadAttributesFile(s.cfg.AttributesFile)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range roots {
		attrs, err := profile.ResolveAttributes(p, overrides, nil)
		if err != nil {
			return nil, err
		}
		if err := profile.ApplyAttributes(p, attrs); err != nil {
			return nil, err
		}
	}

	return profile.ResolveAll(roots)
}
