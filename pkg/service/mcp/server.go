package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/usecase/answer"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UseCase is the part of answer.UseCase exposed as MCP tools
type UseCase interface {
	Resolve(ctx context.Context, input answer.ResolveInput) (*answer.Answer, error)
	History(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error)
	DeleteRecord(ctx context.Context, userID model.UserID, index int) error
	ClearHistory(ctx context.Context, userID model.UserID) error
}

// Server exposes answer resolution and history management over MCP
type Server struct {
	uc          UseCase
	profile     string
	defaultUser model.UserID
	server      *mcp.Server
}

// Option is a functional option for Server
type Option func(*Server)

// WithDefaultUser sets the user ID used when a tool call omits user_id
func WithDefaultUser(userID model.UserID) Option {
	return func(s *Server) {
		s.defaultUser = userID
	}
}

// NewServer creates an MCP server. profile is the formatted user profile
// used when a resolve_answer call does not carry its own.
func NewServer(uc UseCase, profile, version string, opts ...Option) *Server {
	s := &Server{
		uc:      uc,
		profile: profile,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "ditto",
		Version: version,
	}, nil)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "resolve_answer",
		Description: "Answer a survey question for the user. Returns the answer given to an equivalent earlier question when one exists, so answers stay consistent.",
	}, s.resolveAnswer)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_history",
		Description: "List the user's answered questions, oldest first, with their index",
	}, s.listHistory)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_history",
		Description: "Delete one answered question by its index in list_history",
	}, s.deleteHistory)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Delete all answered questions of the user",
	}, s.clearHistory)

	return s
}

// Serve runs the server on transport until the client disconnects or ctx is done
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// ServeStdio runs the server on stdin and stdout
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a streamable HTTP handler serving this server
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) userID(v string) (model.UserID, error) {
	if v != "" {
		return model.UserID(v), nil
	}
	if s.defaultUser != "" {
		return s.defaultUser, nil
	}
	return "", goerr.Wrap(model.ErrInvalidInput, "user_id is required")
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

type resolveParams struct {
	UserID   string `json:"user_id,omitempty" jsonschema:"User ID. Uses the server default when omitted"`
	Question string `json:"question,omitempty" jsonschema:"Question text including any multiple-choice options"`
	Image    string `json:"image,omitempty" jsonschema:"Image of the question as a data URI (data:<mimetype>;base64,<data>)"`
	Profile  string `json:"profile,omitempty" jsonschema:"User profile. Uses the server profile when omitted"`
}

// ResolveResult is the JSON body returned by resolve_answer
type ResolveResult struct {
	Answer      string  `json:"answer"`
	Source      string  `json:"source"`
	Score       float64 `json:"score,omitempty"`
	RecordID    string  `json:"record_id,omitempty"`
	Question    string  `json:"question"`
	RecordError string  `json:"record_error,omitempty"`
}

func (s *Server) resolveAnswer(ctx context.Context, req *mcp.CallToolRequest, params *resolveParams) (*mcp.CallToolResult, any, error) {
	userID, err := s.userID(params.UserID)
	if err != nil {
		return nil, nil, err
	}

	question := model.Question{Text: params.Question}
	if params.Image != "" {
		img, err := model.ParseDataURI(params.Image)
		if err != nil {
			return nil, nil, err
		}
		question.Image = img
	}

	profile := params.Profile
	if profile == "" {
		profile = s.profile
	}

	resp, err := s.uc.Resolve(ctx, answer.ResolveInput{
		UserID:   userID,
		Question: question,
		Profile:  profile,
	})
	if err != nil {
		logging.From(ctx).Error("failed to resolve answer", "error", err)
		return nil, nil, err
	}

	result := ResolveResult{
		Answer:   resp.Text,
		Source:   string(resp.Source),
		Score:    resp.Score,
		RecordID: string(resp.RecordID),
		Question: resp.Question,
	}
	if resp.RecordErr != nil {
		result.RecordError = resp.RecordErr.Error()
	}
	return jsonResult(result)
}

type userParams struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User ID. Uses the server default when omitted"`
}

// HistoryEntry is one record in the list_history result
type HistoryEntry struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) listHistory(ctx context.Context, req *mcp.CallToolRequest, params *userParams) (*mcp.CallToolResult, any, error) {
	userID, err := s.userID(params.UserID)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.uc.History(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]HistoryEntry, 0, len(records))
	for i, r := range records {
		entries = append(entries, HistoryEntry{
			Index:     i,
			ID:        string(r.ID),
			Question:  r.Question,
			Answer:    r.Answer,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	return jsonResult(map[string]any{"records": entries})
}

type deleteParams struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User ID. Uses the server default when omitted"`
	Index  int    `json:"index" jsonschema:"Index of the record as shown by list_history. 0 is the oldest"`
}

func (s *Server) deleteHistory(ctx context.Context, req *mcp.CallToolRequest, params *deleteParams) (*mcp.CallToolResult, any, error) {
	userID, err := s.userID(params.UserID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.uc.DeleteRecord(ctx, userID, params.Index); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"deleted": params.Index})
}

func (s *Server) clearHistory(ctx context.Context, req *mcp.CallToolRequest, params *userParams) (*mcp.CallToolResult, any, error) {
	userID, err := s.userID(params.UserID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.uc.ClearHistory(ctx, userID); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"cleared": true})
}
