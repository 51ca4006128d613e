package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/inkveil/inkveil/internal/bridge"
	"github.com/inkveil/inkveil/internal/config"
	"github.com/inkveil/inkveil/internal/descriptions"
	"github.com/inkveil/inkveil/internal/extract"
	"github.com/inkveil/inkveil/internal/render"
	"github.com/inkveil/inkveil/internal/session"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *session.Session
	extractor session.Extractor
	bridge    *bridge.Bridge
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, sess *session.Session, extractor session.Extractor,
	b *bridge.Bridge, logger *zap.Logger,
) (*Server, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		session:   sess,
		extractor: extractor,
		bridge:    b,
		mcpServer: mcpServer,
		logger:    logger,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	statementDetectTool := mcp.NewTool(
		"statement_detect",
		mcp.WithDescription(descriptions.StatementDetectDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the statement PDF"),
		),
		mcp.WithString("password",
			mcp.Description("Password for encrypted statements"),
		),
	)
	s.mcpServer.AddTool(statementDetectTool, s.handleStatementDetect)

	statementRedactTool := mcp.NewTool(
		"statement_redact",
		mcp.WithDescription(descriptions.StatementRedactDescription),
	)
	s.mcpServer.AddTool(statementRedactTool, s.handleStatementRedact)

	statementExtractTool := mcp.NewTool(
		"statement_extract",
		mcp.WithDescription(descriptions.StatementExtractDescription),
	)
	s.mcpServer.AddTool(statementExtractTool, s.handleStatementExtract)

	statementExportTool := mcp.NewTool(
		"statement_export",
		mcp.WithDescription(descriptions.StatementExportDescription),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Path for the XLSX file to write"),
		),
	)
	s.mcpServer.AddTool(statementExportTool, s.handleStatementExport)

	serverInfoTool := mcp.NewTool(
		"server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleStatementDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	password := ""
	if p, ok := request.GetArguments()["password"].(string); ok {
		password = p
	}

	summaries, err := s.session.Open(path, password)
	if err != nil {
		if errors.Is(err, render.ErrPasswordRequired) {
			return mcp.NewToolResultError(
				"document requires a password: retry with the password argument"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Opened statement: %s\n", path)
	responseText += fmt.Sprintf("Pages: %d\n\n", len(summaries))
	totalRects := 0
	for _, ps := range summaries {
		responseText += fmt.Sprintf("Page %d: %d lines, %d matches, %d rectangles placed\n",
			ps.Number, ps.Lines, ps.Matches, ps.AutoRects)
		totalRects += ps.AutoRects
	}
	responseText += fmt.Sprintf("\nTotal rectangles: %d\n", totalRects)
	responseText += "Review the covered pages with statement_redact before exporting."

	return mcp.NewToolResultText(responseText), nil
}

// redactedPage is one baked page in a statement_redact result.
type redactedPage struct {
	Page      int    `json:"page"`
	PNGBase64 string `json:"png_base64"`
}

func (s *Server) handleStatementRedact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pngs, err := s.session.BakePages(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoDocument) {
			return mcp.NewToolResultError("no statement open: run statement_detect first"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	pages := make([]redactedPage, len(pngs))
	for i, png := range pngs {
		pages[i] = redactedPage{
			Page:      i + 1,
			PNGBase64: base64.StdEncoding.EncodeToString(png),
		}
	}

	payload, err := json.Marshal(pages)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Baked %d redacted page(s) as PNG.\n\n%s", len(pages), payload)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleStatementExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.extractor == nil {
		return mcp.NewToolResultError("no extraction provider configured: set INKVEIL_APIKEY"), nil
	}

	records, err := s.session.Extract(ctx, s.extractor)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoDocument):
			return mcp.NewToolResultError("no statement open: run statement_detect first"), nil
		case errors.Is(err, extract.ErrEmptyResult):
			return mcp.NewToolResultError("no transactions found in the redacted pages"), nil
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Extracted %d transaction(s):\n\n%s", len(records), payload)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleStatementExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.extractor == nil {
		return mcp.NewToolResultError("no extraction provider configured: set INKVEIL_APIKEY"), nil
	}

	f, err := os.Create(output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot create output file: %v", err)), nil
	}
	defer f.Close()

	records, err := s.session.Export(ctx, s.extractor, s.bridge, f)
	if err != nil {
		os.Remove(output)
		switch {
		case errors.Is(err, session.ErrNoDocument):
			return mcp.NewToolResultError("no statement open: run statement_detect first"), nil
		case errors.Is(err, extract.ErrEmptyResult):
			return mcp.NewToolResultError("no transactions found in the redacted pages"), nil
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	responseText := fmt.Sprintf("Exported %d transaction(s) to %s\n", len(records), output)
	if s.bridge != nil && s.bridge.Attached() {
		responseText += "Transactions were also delivered to the attached host.\n"
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	responseText := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	responseText += fmt.Sprintf("📁 Statement Directory: %s\n", s.config.StatementDirectory)
	responseText += fmt.Sprintf("📏 Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	responseText += fmt.Sprintf("🔍 Header Region Fraction: %.2f\n", s.config.TopRegionFraction)
	responseText += fmt.Sprintf("📐 Line Tolerance: %.1f\n\n", s.config.LineTolerance)

	responseText += fmt.Sprintf("Session phase: %s\n", s.session.Phase())
	if path := s.session.Path(); path != "" {
		responseText += fmt.Sprintf("Open document: %s\n", path)
		if ed := s.session.Editor(); ed != nil {
			responseText += fmt.Sprintf("Pages: %d, rectangles: %d\n",
				len(ed.Document().Pages), ed.Document().RectCount())
		}
	}

	responseText += "\n🛠️  Available Tools:\n"
	for _, tool := range []struct {
		name  string
		usage string
	}{
		{"statement_detect", "Open a statement and place redaction rectangles over detected PII"},
		{"statement_redact", "Bake the current scene into redacted PNG pages"},
		{"statement_extract", "Extract transaction rows from the redacted pages"},
		{"statement_export", "Extract and write an XLSX spreadsheet"},
		{"server_info", "Show server status and usage guidance"},
	} {
		responseText += fmt.Sprintf("• %s - %s\n", tool.name, tool.usage)
	}

	responseText += "\n" + descriptions.UsageGuidance

	return mcp.NewToolResultText(responseText), nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode",
		zap.String("dir", s.config.StatementDirectory))

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server over streamable HTTP
func (s *Server) runServerMode(ctx context.Context) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in HTTP mode",
			zap.String("address", s.config.Address()))
		errCh <- httpServer.Start(s.config.Address())
	}()

	select {
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	}
}
