// Package mcpserver exposes sample verification as an MCP tool so agents that generate
// samples can check them in the same session.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/verify"
)

const ToolName = "verify_sample"

// VerifyFunc runs one verification with the server's configured oracles and repair backend.
type VerifyFunc func(ctx context.Context, opts Request, sample types.GeneratedSample) (*types.VerificationResult, error)

// Request carries the per-call parameters that are not part of the sample itself.
type Request struct {
	Language             string
	ClientDistPath       string
	PackageNameToExclude string
}

type VerifyInput struct {
	Code                 string `json:"code" jsonschema:"complete source of the sample"`
	Language             string `json:"language" jsonschema:"language identifier such as python or typescript"`
	FileName             string `json:"file_name,omitempty" jsonschema:"sample file name, used in logs and records"`
	ClientDistPath       string `json:"client_dist_path,omitempty" jsonschema:"host path of a locally built client library to check against"`
	PackageNameToExclude string `json:"package_name_to_exclude,omitempty" jsonschema:"published package that must not shadow the local client"`
}

type VerifyOutput struct {
	Succeeded    bool   `json:"succeeded"`
	AttemptsMade int    `json:"attempts_made"`
	Content      string `json:"content"`
	Explanation  string `json:"explanation,omitempty"`
}

type handler struct {
	verify VerifyFunc
	logger *slog.Logger
}

// New returns an MCP server with the verify_sample tool registered.
func New(fn VerifyFunc, version string, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{verify: fn, logger: logger}
	server := mcp.NewServer(&mcp.Implementation{Name: "sampleverify", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name: ToolName,
		Description: "Type-check a code sample in an isolated container and repair it with a chat model until it passes " +
			"or the attempt budget is spent. Returns the final code and whether it passed.",
	}, h.verifySample)
	return server
}

// Serve runs server over stdin/stdout until ctx is done or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (h *handler) verifySample(ctx context.Context, _ *mcp.CallToolRequest, in VerifyInput) (*mcp.CallToolResult, VerifyOutput, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, VerifyOutput{}, errors.New("code is required")
	}
	if strings.TrimSpace(in.Language) == "" {
		return nil, VerifyOutput{}, errors.New("language is required")
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		name = "sample"
	}
	h.logger.Info("verify_sample called", "language", in.Language, "sample", name)

	res, err := h.verify(ctx, Request{
		Language:             in.Language,
		ClientDistPath:       in.ClientDistPath,
		PackageNameToExclude: in.PackageNameToExclude,
	}, types.GeneratedSample{FileName: name, Content: in.Code})
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	out := VerifyOutput{
		Succeeded:    res.Succeeded,
		AttemptsMade: res.AttemptsMade,
		Content:      res.Content,
	}
	if !res.Succeeded {
		out.Explanation = verify.LastOutput(res)
	}
	return nil, out, nil
}
