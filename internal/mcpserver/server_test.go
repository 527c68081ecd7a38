package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/sampleverify/internal/types"
)

func TestVerifySample(t *testing.T) {
	var gotReq Request
	var gotSample types.GeneratedSample
	h := &handler{
		verify: func(ctx context.Context, req Request, sample types.GeneratedSample) (*types.VerificationResult, error) {
			gotReq, gotSample = req, sample
			return &types.VerificationResult{
				Succeeded:    true,
				Content:      "fixed",
				AttemptsMade: 2,
				Attempts:     []types.VerificationAttempt{{AttemptNumber: 1, TypeCheckOutput: "bad"}, {AttemptNumber: 2, TypeCheckSucceeded: true}},
			}, nil
		},
	}
	h.logger = discardLogger()

	_, out, err := h.verifySample(context.Background(), nil, VerifyInput{
		Code:           "broken",
		Language:       "python",
		ClientDistPath: "/dist",
	})
	require.NoError(t, err)
	require.Equal(t, VerifyOutput{Succeeded: true, AttemptsMade: 2, Content: "fixed"}, out)
	require.Equal(t, Request{Language: "python", ClientDistPath: "/dist"}, gotReq)
	require.Equal(t, types.GeneratedSample{FileName: "sample", Content: "broken"}, gotSample)
}

func TestVerifySampleFailureExplains(t *testing.T) {
	h := &handler{
		verify: func(ctx context.Context, req Request, sample types.GeneratedSample) (*types.VerificationResult, error) {
			return &types.VerificationResult{
				Content:  sample.Content,
				Attempts: []types.VerificationAttempt{{AttemptNumber: 1, Preflight: true, TypeCheckOutput: "language not supported: \"cobol\""}},
			}, nil
		},
		logger: discardLogger(),
	}

	_, out, err := h.verifySample(context.Background(), nil, VerifyInput{Code: "x", Language: "cobol", FileName: "a.cbl"})
	require.NoError(t, err)
	require.False(t, out.Succeeded)
	require.Equal(t, 0, out.AttemptsMade)
	require.Contains(t, out.Explanation, "language not supported")
}

func TestVerifySampleValidatesInput(t *testing.T) {
	h := &handler{logger: discardLogger()}

	_, _, err := h.verifySample(context.Background(), nil, VerifyInput{Language: "python"})
	require.Error(t, err)
	_, _, err = h.verifySample(context.Background(), nil, VerifyInput{Code: "x"})
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	server := New(func(ctx context.Context, req Request, sample types.GeneratedSample) (*types.VerificationResult, error) {
		return nil, nil
	}, "test", discardLogger())
	require.NotNil(t, server)
}
