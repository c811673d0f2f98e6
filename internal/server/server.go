package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/protocol"
	"github.com/dshills/codescope-mcp/internal/transport"
)

const (
	// ServerName is the MCP server name
	ServerName = "codescope-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// ProtocolVersion is the MCP protocol revision this server speaks
	ProtocolVersion = "2024-11-05"

	// defaultMaxConcurrent bounds simultaneously executing request handlers
	defaultMaxConcurrent = 8
)

// JSON-RPC method names
const (
	methodInitialize    = "initialize"
	methodInitialized   = "notifications/initialized"
	methodCancelled     = "notifications/cancelled"
	methodPing          = "ping"
	methodShutdown      = "shutdown"
	methodToolsList     = "tools/list"
	methodToolsCall     = "tools/call"
	methodResourcesList = "resources/list"
	methodResourcesRead = "resources/read"
	methodPromptsList   = "prompts/list"
	methodPromptsGet    = "prompts/get"
	methodCompletion    = "completion/complete"
)

// State is the session lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ProviderFactory builds the index provider for a project root. The server
// calls it during the initialize handshake, once the effective project path
// is known.
type ProviderFactory func(projectRoot string) (index.Provider, error)

// Config holds server construction parameters.
type Config struct {
	Name          string
	Version       string
	ProjectRoot   string // Default project root, overridable by initialize
	Factory       ProviderFactory
	Logger        *slog.Logger
	MaxConcurrent int64
}

// Server is the protocol bridge: it owns the lifecycle state, the pending
// request table, and the tool registry, and serves one stdio session.
type Server struct {
	name        string
	version     string
	projectRoot string
	factory     ProviderFactory
	logger      *slog.Logger

	registry *Registry
	pending  *pendingTable
	sem      *semaphore.Weighted
	wg       sync.WaitGroup

	mu       sync.Mutex // guards state, provider, projectRoot
	state    State
	provider index.Provider
}

// New creates a server. Tool registration failures are programming errors
// and surface here.
func New(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = ServerName
	}
	if cfg.Version == "" {
		cfg.Version = ServerVersion
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Factory == nil {
		return nil, errors.New("provider factory is required")
	}

	s := &Server{
		name:        cfg.Name,
		version:     cfg.Version,
		projectRoot: cfg.ProjectRoot,
		factory:     cfg.Factory,
		logger:      cfg.Logger,
		registry:    NewRegistry(),
		pending:     newPendingTable(),
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// registerTools installs the fixed tool catalogue.
func (s *Server) registerTools() error {
	for _, reg := range []struct {
		tool    Tool
		handler Handler
	}{
		{searchTool(), s.handleSearch},
		{symbolsTool(), s.handleSymbols},
		{filesTool(), s.handleFiles},
		{showTool(), s.handleShow},
		{treeTool(), s.handleTree},
		{callersTool(), s.handleCallers},
		{calleesTool(), s.handleCallees},
		{usageTool(), s.handleUsage},
		{statusTool(), s.handleStatus},
	} {
		if err := s.registry.Register(reg.tool, reg.handler); err != nil {
			return err
		}
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// currentProvider returns the provider installed by the handshake, or nil.
func (s *Server) currentProvider() index.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Serve reads framed messages from r and writes responses to w until the
// stream ends, a shutdown request arrives, or the framing breaks. It returns
// nil on clean shutdown and a framing/transport error otherwise.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	framer := transport.New(r, w)
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr error
	for {
		data, err := framer.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("transport closed by peer")
			} else {
				// Byte boundaries cannot be recovered; close the transport.
				s.logger.Error("transport failure", "error", err)
				serveErr = err
			}
			break
		}
		if len(data) == 0 {
			continue
		}

		s.handleMessage(serveCtx, framer, data)

		if s.State() == StateShuttingDown {
			break
		}
	}

	// Drain: cancel pending work, wait for handlers, then close.
	s.setState(StateShuttingDown)
	s.pending.drain()
	cancel()
	s.wg.Wait()
	s.setState(StateClosed)
	s.closeProvider()
	s.logger.Info("server closed", "error", serveErr)
	return serveErr
}

// handleMessage decodes one framed message and routes it.
func (s *Server) handleMessage(ctx context.Context, framer *transport.Framer, data []byte) {
	msg, perr := protocol.Decode(data)
	if perr != nil {
		var id *protocol.ID
		if msg != nil {
			id = msg.ID
		}
		s.logger.Warn("rejecting undecodable message", "code", perr.Code, "error", perr.Message)
		s.writeError(framer, id, perr)
		return
	}

	switch msg.Kind {
	case protocol.KindNotification:
		s.handleNotification(msg)
	case protocol.KindRequest:
		s.handleRequest(ctx, framer, msg)
	case protocol.KindResponse:
		// This server never issues requests, so a response has no home.
		s.logger.Warn("ignoring unexpected response message", "id", responseKey(msg))
	}
}

func responseKey(msg *protocol.Message) string {
	if msg.ID == nil {
		return "<null>"
	}
	return msg.ID.Key()
}

// handleNotification processes a notification. Failures are logged, never
// surfaced to the peer.
func (s *Server) handleNotification(msg *protocol.Message) {
	switch msg.Method {
	case methodInitialized:
		s.logger.Info("client completed initialization")
	case methodCancelled:
		s.handleCancelled(msg.Params)
	default:
		s.logger.Debug("ignoring notification", "method", msg.Method)
	}
}

// cancelParams is the payload of notifications/cancelled.
type cancelParams struct {
	RequestID protocol.ID `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

func (s *Server) handleCancelled(params json.RawMessage) {
	var p cancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn("malformed cancellation notification", "error", err)
		return
	}
	if elapsed, ok := s.pending.cancel(p.RequestID.Key()); ok {
		s.logger.Info("cancelled pending request",
			"id", p.RequestID.Key(), "reason", p.Reason, "elapsed", elapsed)
	} else {
		s.logger.Debug("cancellation for unknown request", "id", p.RequestID.Key())
	}
}

// handleRequest applies handshake gating and routes the request. Lifecycle
// methods are answered inline; everything else is dispatched concurrently.
func (s *Server) handleRequest(ctx context.Context, framer *transport.Framer, msg *protocol.Message) {
	switch msg.Method {
	case methodInitialize:
		s.handleInitialize(framer, msg)
		return
	case methodPing:
		// Answered in any lifecycle state.
		s.writeResult(framer, msg.ID, struct{}{})
		return
	}

	if st := s.State(); st != StateReady {
		s.writeError(framer, msg.ID, protocol.Errorf(protocol.CodeNotInitialized,
			"server not initialized (state: %s); send initialize first", st))
		return
	}

	if msg.Method == methodShutdown {
		s.logger.Info("shutdown requested")
		s.setState(StateShuttingDown)
		s.pending.drain()
		s.writeResult(framer, msg.ID, struct{}{})
		return
	}

	s.dispatch(ctx, framer, msg)
}

// initializeParams is the payload of the initialize handshake.
type initializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      clientInfo      `json:"clientInfo"`
	RootURI         string          `json:"rootUri,omitempty"`
	ProjectPath     string          `json:"projectPath,omitempty"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the handshake response payload.
type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      serverInfo         `json:"serverInfo"`
}

type serverCapabilities struct {
	Tools       map[string]interface{} `json:"tools"`
	Resources   map[string]interface{} `json:"resources"`
	Prompts     map[string]interface{} `json:"prompts"`
	Completions map[string]interface{} `json:"completions"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// handleInitialize runs the handshake: validate parameters, build the index
// provider for the effective project root, and move to Ready.
func (s *Server) handleInitialize(framer *transport.Framer, msg *protocol.Message) {
	s.mu.Lock()
	if s.state != StateUninitialized {
		st := s.state
		s.mu.Unlock()
		s.writeError(framer, msg.ID, protocol.Errorf(protocol.CodeInvalidRequest,
			"initialize not allowed in state %s", st))
		return
	}
	s.state = StateInitializing
	s.mu.Unlock()

	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.setState(StateUninitialized)
			s.writeError(framer, msg.ID, protocol.Errorf(protocol.CodeInvalidParams,
				"invalid initialize parameters: %v", err))
			return
		}
	}

	root := s.projectRoot
	if params.ProjectPath != "" {
		root = params.ProjectPath
	} else if path, ok := projectPathFromRootURI(params.RootURI); ok {
		root = path
	}

	provider, err := s.factory(root)
	if err != nil {
		s.logger.Error("failed to open index provider", "root", root, "error", err)
		s.setState(StateUninitialized)
		s.writeError(framer, msg.ID, protocol.NewError(protocol.CodeInternalError,
			"failed to open project index"))
		return
	}

	s.mu.Lock()
	s.provider = provider
	s.projectRoot = root
	s.state = StateReady
	s.mu.Unlock()

	s.logger.Info("session initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion,
		"root", root)

	s.writeResult(framer, msg.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: serverCapabilities{
			Tools:       map[string]interface{}{"listChanged": false},
			Resources:   map[string]interface{}{"subscribe": false, "listChanged": false},
			Prompts:     map[string]interface{}{"listChanged": false},
			Completions: map[string]interface{}{},
		},
		ServerInfo: serverInfo{Name: s.name, Version: s.version},
	})
}

// projectPathFromRootURI extracts a filesystem path from a file:// URI.
// URIs with any other scheme are not filesystem paths and are ignored.
func projectPathFromRootURI(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	if path, ok := strings.CutPrefix(uri, "file://"); ok {
		return path, path != ""
	}
	if strings.Contains(uri, "://") {
		return "", false
	}
	return uri, true
}

func (s *Server) closeProvider() {
	s.mu.Lock()
	provider := s.provider
	s.provider = nil
	s.mu.Unlock()
	if provider != nil {
		if err := provider.Close(); err != nil {
			s.logger.Warn("failed to close index provider", "error", err)
		}
	}
}

// writeResult encodes and writes one success response.
func (s *Server) writeResult(framer *transport.Framer, id *protocol.ID, result interface{}) {
	s.writeResponse(framer, protocol.NewResult(id, result))
}

// writeError encodes and writes one error response.
func (s *Server) writeError(framer *transport.Framer, id *protocol.ID, perr *protocol.Error) {
	s.writeResponse(framer, protocol.NewErrorResponse(id, perr))
}

func (s *Server) writeResponse(framer *transport.Framer, resp *protocol.Response) {
	data, err := protocol.Encode(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		return
	}
	if err := framer.Write(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
