package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// errorResponse is the body of every 4xx and 5xx reply
type errorResponse struct {
	Error  string             `json:"error"`
	Reason string             `json:"reason,omitempty"`
	Fields []types.FieldError `json:"fields,omitempty"`
}

func (s *Server) handleSearch(c *gin.Context) {
	args, req, ok := bindSearch(c)
	if !ok {
		return
	}

	resp, err := s.searcher.Search(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRequest) {
			writeInvalid(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "search failed", Reason: err.Error()})
		return
	}

	c.JSON(http.StatusOK, pipeline.NewPayload(args, resp))
}

func (s *Server) handleStrategy(c *gin.Context) {
	_, req, ok := bindSearch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.searcher.Derive(req))
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "health checker not configured"})
		return
	}
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != health.StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// bindSearch decodes and validates a search body. It writes the 400
// response itself and reports false on failure.
func bindSearch(c *gin.Context) (types.SearchArgs, types.SearchRequest, bool) {
	var args types.SearchArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Reason: err.Error()})
		return args, types.SearchRequest{}, false
	}
	req, err := args.Request()
	if err != nil {
		writeInvalid(c, err)
		return args, types.SearchRequest{}, false
	}
	return args, req, true
}

func writeInvalid(c *gin.Context, err error) {
	body := errorResponse{Error: err.Error()}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	c.JSON(http.StatusBadRequest, body)
}
