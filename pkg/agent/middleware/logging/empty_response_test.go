package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/logx"
)

func TestEmptyResponseIsLoggedAndPassedThrough(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(nil) })

	emptyErr := llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "no content")
	mock := llm.NewMockLLMClient(nil, []error{emptyErr})
	client := llm.Chain(mock, EmptyResponseLoggingMiddleware(logx.NewLogger("test")))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("place a cat")})
	_, err := client.Complete(context.Background(), req)
	require.Error(t, err)
	assert.Same(t, emptyErr, err)
	assert.Contains(t, buf.String(), "EMPTY RESPONSE FROM mock-model")
	assert.Contains(t, buf.String(), "place a cat")
}

func TestOtherErrorsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(nil) })

	mock := llm.NewMockLLMClient(nil, []error{llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")})
	client := llm.Chain(mock, EmptyResponseLoggingMiddleware(logx.NewLogger("test")))

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Empty(t, buf.String())
}
