package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mamaar/methodobject/pkg/analyzers/relocation"
	"github.com/mamaar/methodobject/pkg/types"
)

const packagesURI = "workspace://packages"

// WorkspaceStatus is the output of load_workspace and workspace_status.
type WorkspaceStatus struct {
	Loaded       bool     `json:"loaded"`
	Module       string   `json:"module,omitempty"`
	RootPath     string   `json:"root_path,omitempty"`
	PackageCount int      `json:"package_count"`
	Packages     []string `json:"packages,omitempty"`
}

// RegisterTools wires every tool and resource into the MCP server.
func RegisterTools(s *server.MCPServer, state *MCPServer) {
	s.AddTool(mcp.NewTool("load_workspace",
		mcp.WithDescription("Load a Go module into memory. Must be called before any other tool."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the module root (go.mod directory)")),
	), state.handleLoadWorkspace)

	s.AddTool(mcp.NewTool("workspace_status",
		mcp.WithDescription("Return whether a workspace is loaded, its module and its packages."),
	), state.handleWorkspaceStatus)

	s.AddTool(mcp.NewTool("extract_method_object",
		append(requestOptions(),
			mcp.WithDescription("Extract the statements between two lines into the method of a new struct type, "+
				"bridging references the target package cannot see. Set dry_run to preview the diff."),
			mcp.WithBoolean("replace_source", mcp.Description("Replace the statements with a use of the object")),
			mcp.WithBoolean("dry_run", mcp.Description("Return the diff without writing files")),
		)...,
	), state.handleExtractMethodObject)

	s.AddTool(mcp.NewTool("bridge_report",
		append(requestOptions(),
			mcp.WithDescription("List the references an extraction would bridge, skip or leave for manual adjustment."),
		)...,
	), state.handleBridgeReport)

	s.AddTool(mcp.NewTool("check_relocation",
		mcp.WithDescription("List references in a package that would need a bridge if its function bodies moved to the target package."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Import path or directory of the destination package")),
		mcp.WithString("package", mcp.Description("Package to check; all packages when empty")),
	), state.handleCheckRelocation)

	s.AddResource(mcp.NewResource(packagesURI, "Package List",
		mcp.WithResourceDescription("Packages of the loaded workspace"),
		mcp.WithMIMEType("application/json"),
	), state.handlePackagesResource)
}

func requestOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("source_file", mcp.Required(), mcp.Description("Source file, absolute or relative to the workspace root")),
		mcp.WithNumber("start_line", mcp.Required(), mcp.Description("First line of the statements")),
		mcp.WithNumber("end_line", mcp.Required(), mcp.Description("Last line of the statements")),
		mcp.WithString("object_name", mcp.Required(), mcp.Description("Name of the generated struct type")),
		mcp.WithString("target_dir", mcp.Description("Directory of the package hosting the object; the source package when empty")),
		mcp.WithString("target_file", mcp.Description("File name inside the target directory")),
		mcp.WithString("method_name", mcp.Description("Name of the generated method (default Invoke)")),
		mcp.WithBoolean("static", mcp.Description("Generate package-level bridge functions instead of methods")),
	}
}

func (s *MCPServer) handleLoadWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return errResult(err), nil
	}
	if _, err := s.LoadWorkspace(path); err != nil {
		return errResult(err), nil
	}
	return s.handleWorkspaceStatus(ctx, req)
}

func (s *MCPServer) handleWorkspaceStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := WorkspaceStatus{Loaded: s.workspace != nil}
	if ws := s.workspace; ws != nil {
		out.RootPath = ws.RootPath
		out.PackageCount = len(ws.Packages)
		if ws.Module != nil {
			out.Module = ws.Module.Path
		}
		for _, pkg := range ws.Packages {
			out.Packages = append(out.Packages, pkg.ImportPath)
		}
		sort.Strings(out.Packages)
	}
	return textResult(out), nil
}

// request reads the arguments shared by extract_method_object and
// bridge_report.
func (s *MCPServer) request(ws *types.Workspace, req mcp.CallToolRequest) (types.ExtractMethodObjectRequest, error) {
	source, err := req.RequireString("source_file")
	if err != nil {
		return types.ExtractMethodObjectRequest{}, err
	}
	start, err := req.RequireInt("start_line")
	if err != nil {
		return types.ExtractMethodObjectRequest{}, err
	}
	end, err := req.RequireInt("end_line")
	if err != nil {
		return types.ExtractMethodObjectRequest{}, err
	}
	name, err := req.RequireString("object_name")
	if err != nil {
		return types.ExtractMethodObjectRequest{}, err
	}
	if !filepath.IsAbs(source) {
		source = filepath.Join(ws.RootPath, source)
	}
	return types.ExtractMethodObjectRequest{
		SourceFile:    source,
		StartLine:     start,
		EndLine:       end,
		ObjectName:    name,
		TargetDir:     req.GetString("target_dir", ""),
		TargetFile:    req.GetString("target_file", ""),
		MethodName:    req.GetString("method_name", ""),
		Static:        req.GetBool("static", s.cfg.Bridge.Static),
		ReplaceSource: req.GetBool("replace_source", false),
	}, nil
}

func (s *MCPServer) handleExtractMethodObject(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun := req.GetBool("dry_run", false)

	var res *PlanResult
	err := s.withWorkspace(func(ws *types.Workspace) error {
		r, err := s.request(ws, req)
		if err != nil {
			return err
		}
		plan, err := s.engine.ExtractMethodObject(ws, r)
		if err != nil {
			return err
		}
		res = newPlanResult(plan)
		if dryRun {
			res.Diff, err = s.engine.PreviewPlan(plan)
			return err
		}
		if err := s.engine.ExecutePlan(plan); err != nil {
			return err
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return errResult(err), nil
	}

	if res.Applied {
		s.SyncWorkspaceChanges(res.AffectedFiles)
	}
	return textResult(res), nil
}

func (s *MCPServer) handleBridgeReport(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var records []types.BridgeRecord
	err := s.withWorkspace(func(ws *types.Workspace) error {
		r, err := s.request(ws, req)
		if err != nil {
			return err
		}
		records, err = s.engine.BridgeReport(ws, r)
		return err
	})
	if err != nil {
		return errResult(err), nil
	}
	if records == nil {
		records = []types.BridgeRecord{}
	}
	return textResult(records), nil
}

func (s *MCPServer) handleCheckRelocation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return errResult(err), nil
	}

	var results []*relocation.Result
	err = s.withWorkspace(func(ws *types.Workspace) error {
		var err error
		results, err = relocation.Check(ws, s.engine.Parser(), req.GetString("package", ""), types.ResolveImportPath(ws, target))
		return err
	})
	if err != nil {
		return errResult(err), nil
	}
	if results == nil {
		results = []*relocation.Result{}
	}
	return textResult(results), nil
}

func (s *MCPServer) handlePackagesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	packages := make(map[string]any)
	if s.workspace != nil {
		for dir, pkg := range s.workspace.Packages {
			rel, err := filepath.Rel(s.workspace.RootPath, dir)
			if err != nil {
				rel = dir
			}
			packages[pkg.ImportPath] = map[string]any{
				"name":       pkg.Name,
				"path":       rel,
				"file_count": len(pkg.Files),
			}
		}
	}
	data, err := json.MarshalIndent(packages, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      packagesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
