package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/cli"
)

func testOptions() (*rootOptions, *bytes.Buffer) {
	var buf bytes.Buffer
	return &rootOptions{out: cli.NewPrinter(&buf)}, &buf
}

func TestCreateAdminValidatesBeforeConnecting(t *testing.T) {
	opts, _ := testOptions()
	ctx := context.Background()

	err := createAdmin(ctx, opts, adminInput{email: "not-an-email", password: "supersecret1"})
	assert.Error(t, err)

	err = createAdmin(ctx, opts, adminInput{email: "admin@domu.test", password: "short"})
	assert.Error(t, err)

	err = createAdmin(ctx, opts, adminInput{email: "admin@domu.test", password: "supersecret1", building: "Torre"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--address")
}

func TestCommandsRequireArguments(t *testing.T) {
	opts, _ := testOptions()

	cmd := createAdminCommand(opts)
	cmd.SetArgs([]string{"--password", "supersecret1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute(), "email flag is required")

	jobsCmd := jobsCommand(opts)
	jobsCmd.SetArgs([]string{"run"})
	jobsCmd.SetOut(&bytes.Buffer{})
	jobsCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, jobsCmd.Execute())
}
