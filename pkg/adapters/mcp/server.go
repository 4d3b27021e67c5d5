package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/sapling"
	httpadapter "github.com/aretw0/sapling/pkg/adapters/http"
	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreeURI is the resource exposing the current tree.
const TreeURI = "sapling://tree"

// Engine defines the interface required by the MCP server to drive sapling.
type Engine interface {
	CurrentTree() *domain.Tree
	LoadModel(ctx context.Context, text string) (*domain.Tree, error)
	Classify(ctx context.Context, text string) (domain.Classification, error)
	Highlights() *align.Alignment
	Construction() *reveal.Construction
}

// LoadModelArgs are the arguments of the load_model tool.
type LoadModelArgs struct {
	Text string `json:"text"`
}

// ClassifyArgs are the arguments of the classify tool.
type ClassifyArgs struct {
	Text string `json:"text"`
}

// LoadModelResponse describes the tree that became current.
type LoadModelResponse struct {
	Stats domain.Stats `json:"stats" jsonschema_description:"Shape of the loaded tree"`
	RunID string       `json:"run_id" jsonschema_description:"ID of the construction reveal started for the tree"`
}

// ClassifyResponse is the classification with the tree nodes its path crossed.
type ClassifyResponse struct {
	Label      string              `json:"label" jsonschema_description:"Predicted label"`
	Path       domain.DecisionPath `json:"path" jsonschema_description:"Feature tests taken from the root"`
	Highlights []int               `json:"highlights" jsonschema_description:"Pre-order ranks of the nodes on the path"`
}

// TreeView is the tree together with its flattened descriptors.
type TreeView struct {
	Stats       domain.Stats        `json:"stats"`
	Root        *domain.Node        `json:"root"`
	Descriptors []domain.Descriptor `json:"descriptors"`
}

// Server wraps the sapling Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("sapling-mcp", strings.TrimSpace(sapling.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	return httpadapter.Serve(ctx, &http.Server{Addr: addr, Handler: mux}, s.logger)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: load_model
	s.mcpServer.AddTool(mcp.NewTool("load_model",
		mcp.WithDescription("Load a decision tree from its text form (pre-order Feature/Threshold lines and leaf labels) and start revealing it."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The model text")),
		mcp.WithOutputSchema[LoadModelResponse](),
	), mcp.NewStructuredToolHandler(s.handleLoadModel))

	// TOOL: classify
	s.mcpServer.AddTool(mcp.NewTool("classify",
		mcp.WithDescription("Classify a message with the current tree and play back its decision path."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The message to classify")),
		mcp.WithOutputSchema[ClassifyResponse](),
	), mcp.NewStructuredToolHandler(s.handleClassify))

	// TOOL: get_tree
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the current tree and its nodes in pre-order."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.treeJSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleLoadModel(ctx context.Context, request mcp.CallToolRequest, args LoadModelArgs) (LoadModelResponse, error) {
	tree, err := s.engine.LoadModel(ctx, args.Text)
	if err != nil {
		s.logger.Warn("MCP LoadModel: rejected", "err", err)
		return LoadModelResponse{}, fmt.Errorf("load failed: %w", err)
	}
	return LoadModelResponse{
		Stats: tree.Stats(),
		RunID: s.engine.Construction().Progress().RunID,
	}, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args ClassifyArgs) (ClassifyResponse, error) {
	if strings.TrimSpace(args.Text) == "" {
		return ClassifyResponse{}, errors.New("text is required")
	}

	res, err := s.engine.Classify(ctx, args.Text)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("classify failed: %w", err)
	}

	// The playback has only just started, so align the whole path up front.
	highlights := align.Align(s.engine.CurrentTree(), res.Path).OnPath()
	if highlights == nil {
		highlights = []int{}
	}
	return ClassifyResponse{Label: res.Label, Path: res.Path, Highlights: highlights}, nil
}

func (s *Server) treeJSON() ([]byte, error) {
	tree := s.engine.CurrentTree()
	if tree == nil {
		return nil, domain.ErrNoModel
	}
	return json.Marshal(TreeView{
		Stats:       tree.Stats(),
		Root:        tree.Root(),
		Descriptors: tree.Descriptors(),
	})
}

func (s *Server) registerResources() {
	// EXPOSE: sapling://tree
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Current Decision Tree",
		mcp.WithMIMEType("application/json"),
	), s.readTree)
}

func (s *Server) readTree(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := s.treeJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TreeURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
