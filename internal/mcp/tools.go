package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ideactx-mcp/internal/indexer"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeIndexUnavailable   = -32003 // Vector index is disabled or not configured
)

// handleSearch handles search_java_symbol and its search_java_class alias
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	searchArgs, err := decodeSearchArgs(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	req, err := searchArgs.Request()
	if err != nil {
		return nil, invalidRequestError(err)
	}

	resp, err := s.pipeline.Search(ctx, req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRequest) {
			return nil, invalidRequestError(err)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	payload := pipeline.NewPayload(searchArgs, resp)
	return mcp.NewToolResultStructured(payload, formatJSON(payload)), nil
}

// handleHealthCheck handles the health_check tool invocation
func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.health == nil {
		return nil, newMCPError(ErrorCodeInternalError, "health checker not configured", nil)
	}
	report := s.health.Check(ctx)
	return mcp.NewToolResultStructured(report, formatJSON(report)), nil
}

// handleIndexSymbols handles the index_symbols tool invocation
func (s *Server) handleIndexSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	if s.indexer == nil {
		return nil, newMCPError(ErrorCodeIndexUnavailable, "vector index is not available", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validateDumpPath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	config := &indexer.Config{
		BatchSize:         getIntDefault(args, "batch_size", 0),
		Workers:           getIntDefault(args, "workers", 0),
		SkipModuleEntries: getBoolDefault(args, "skip_module_entries", false),
	}

	stats, err := s.indexer.IndexFile(ctx, path, config)
	if err != nil {
		if errors.Is(err, indexer.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if s.searcher != nil {
		s.searcher.InvalidateCache()
	}

	response := map[string]interface{}{
		"indexed":         true,
		"run_id":          stats.RunID,
		"records_read":    stats.RecordsRead,
		"module_entries":  stats.ModuleEntries,
		"entries_indexed": stats.EntriesIndexed,
		"entries_skipped": stats.EntriesSkipped,
		"entries_failed":  stats.EntriesFailed,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// decodeSearchArgs converts loosely typed tool arguments into SearchArgs.
// Type mismatches, such as a string limit, are reported as errors.
func decodeSearchArgs(args map[string]interface{}) (types.SearchArgs, error) {
	var out types.SearchArgs
	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return out, fmt.Errorf("%s must be of type %s", typeErr.Field, typeErr.Type)
		}
		return out, err
	}
	return out, nil
}

// invalidRequestError maps a request validation failure to -32602 with per-field details
func invalidRequestError(err error) error {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return newMCPError(ErrorCodeInvalidParams, verr.Error(), map[string]interface{}{
			"fields": verr.Fields,
		})
	}
	return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateDumpPath checks that path names a readable JSON file
func validateDumpPath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotFound
		}
		return fmt.Errorf("%w: %v", ErrPathNotReadable, err)
	}

	if info.IsDir() {
		return ErrPathIsDirectory
	}

	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return ErrNotJSONFile
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathNotReadable, err)
	}
	_ = f.Close()

	return nil
}

// formatJSON formats data as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrPathIsDirectory = errors.New("path is a directory")
	ErrNotJSONFile     = errors.New("path is not a .json file")
)
