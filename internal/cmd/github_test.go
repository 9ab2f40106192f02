package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repofleet/pkg/github"
)

func TestGitHubCommandRegistration(t *testing.T) {
	var names []string
	for _, cmd := range githubCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"repos-configure", "repos-conf-check", "teams-sync", "yaml-template"}, names)
}

// tokenRecorder builds a GitHub client and remembers the token it was given
type tokenRecorder struct {
	githubAPI
	token string
	err   error
}

func (r *tokenRecorder) ValidateToken(context.Context) (*github.TokenInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &github.TokenInfo{User: "octocat"}, nil
}

func recordTokens(t *testing.T, validateErr error) *tokenRecorder {
	t.Helper()
	rec := &tokenRecorder{err: validateErr}
	previous := newGitHubClient
	newGitHubClient = func(token string) githubAPI {
		rec.token = token
		return rec
	}
	t.Cleanup(func() { newGitHubClient = previous })
	return rec
}

type bytesBuffers struct {
	out, err bytes.Buffer
}

func newTestCommand() (*cobra.Command, *bytesBuffers) {
	buffers := &bytesBuffers{}
	cmd := &cobra.Command{}
	cmd.SetOut(&buffers.out)
	cmd.SetErr(&buffers.err)
	cmd.SetContext(context.Background())
	return cmd, buffers
}

func TestGitHubClient_TokenPrecedence(t *testing.T) {
	isolateHome(t)
	noPrompts(t)
	rec := recordTokens(t, nil)

	t.Setenv("GITHUB_TOKEN", "ghp_env")
	githubToken = "ghp_flag"
	t.Cleanup(func() { githubToken = "" })

	cmd, buffers := newTestCommand()
	_, err := githubClient(cmd)
	require.NoError(t, err)
	assert.Equal(t, "ghp_flag", rec.token)
	assert.Contains(t, buffers.out.String(), "✓ Authenticated as octocat")

	githubToken = ""
	_, err = githubClient(cmd)
	require.NoError(t, err)
	assert.Equal(t, "ghp_env", rec.token)
}

func TestGitHubClient_PromptsWhenNoToken(t *testing.T) {
	isolateHome(t)
	rec := recordTokens(t, nil)

	var asked []string
	previous := promptSecret
	promptSecret = func(label string) (string, error) {
		asked = append(asked, label)
		return "ghp_prompted", nil
	}
	t.Cleanup(func() { promptSecret = previous })

	cmd, _ := newTestCommand()
	_, err := githubClient(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"GitHub token"}, asked)
	assert.Equal(t, "ghp_prompted", rec.token)
}

func TestGitHubClient_InvalidToken(t *testing.T) {
	isolateHome(t)
	t.Setenv("GITHUB_TOKEN", "ghp_revoked")
	recordTokens(t, &github.APIError{Type: github.ErrorTypeAuth, Message: "Bad credentials"})

	cmd, buffers := newTestCommand()
	_, err := githubClient(cmd)
	require.Error(t, err)

	var apiErr *github.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Contains(t, buffers.err.String(), "Authentication failed")
	assert.Contains(t, buffers.err.String(), "GitHub authentication is required")
	assert.NotContains(t, buffers.out.String(), "Authenticated as")
}
