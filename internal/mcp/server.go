package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pesv-compliance/backend/internal/services"
	"pesv-compliance/backend/pkg/models"
)

// Server exposes the compliance engine as MCP tools so assistant clients can
// inspect the registry and produce documents.
type Server struct {
	mcpServer *server.MCPServer
	steps     *services.StepService
	generator *services.GeneratorService
}

func NewServer(steps *services.StepService, generator *services.GeneratorService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"PESV Compliance",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		steps:     steps,
		generator: generator,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_steps",
			mcp.WithDescription("List the compliance steps with status and evidence counts"),
		),
		s.handleListSteps,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"compliance_status",
			mcp.WithDescription("Report the program-wide compliance percentage"),
		),
		s.handleComplianceStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_document",
			mcp.WithDescription("Generate a step's document from field answers and record it as evidence"),
			mcp.WithString("step_id", mcp.Required(), mcp.Description("The ID of the step")),
			mcp.WithObject("answers", mcp.Required(), mcp.Description("Field answers keyed by label")),
		),
		s.handleGenerateDocument,
	)
}

func (s *Server) handleListSteps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	steps, err := s.steps.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list steps: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(steps)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleComplianceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.steps.Compliance(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute compliance: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(summary)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGenerateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	stepID, ok := args["step_id"].(string)
	if !ok || stepID == "" {
		return mcp.NewToolResultError("Missing required parameter: step_id"), nil
	}

	rawAnswers, ok := args["answers"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: answers"), nil
	}
	answers := make(models.AnswerSet, len(rawAnswers))
	for label, value := range rawAnswers {
		str, ok := value.(string)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Answer for %q must be a string", label)), nil
		}
		answers[label] = str
	}

	doc, err := s.generator.Generate(ctx, stepID, answers, "mcp-client")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate document: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(doc)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
