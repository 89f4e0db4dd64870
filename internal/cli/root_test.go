// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"hubdl/internal/hubdlerr"
)

func TestExitCodeForUsageError(t *testing.T) {
	err := &usageError{errors.New("accepts 1 arg(s), received 0")}
	if got := exitCodeFor(err); got != 3 {
		t.Errorf("exitCodeFor(usageError) = %d, want 3", got)
	}
}

func TestExitCodeForAuthRequired(t *testing.T) {
	err := hubdlerr.AuthRequired("https://hub.test/models/a/b")
	if got := exitCodeFor(err); got != 2 {
		t.Errorf("exitCodeFor(AuthRequired) = %d, want 2", got)
	}
}

func TestExitCodeForOtherErrorsIsOne(t *testing.T) {
	if got := exitCodeFor(errors.New("boom")); got != 1 {
		t.Errorf("exitCodeFor(generic) = %d, want 1", got)
	}
	if got := exitCodeFor(hubdlerr.IO(errors.New("disk full"))); got != 1 {
		t.Errorf("exitCodeFor(IO) = %d, want 1", got)
	}
}

func TestExactArgsWrapsFailureAsUsageError(t *testing.T) {
	cmd := &cobra.Command{Use: "x", Args: exactArgs(1)}
	err := cmd.Args(cmd, nil)
	if err == nil {
		t.Fatal("expected an error for zero args against exactArgs(1)")
	}
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Errorf("expected a *usageError, got %T", err)
	}
}

func TestNoArgsWrapsFailureAsUsageError(t *testing.T) {
	cmd := &cobra.Command{Use: "x", Args: noArgs}
	err := cmd.Args(cmd, []string{"unexpected"})
	if err == nil {
		t.Fatal("expected an error for an unexpected positional arg")
	}
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Errorf("expected a *usageError, got %T", err)
	}
}
