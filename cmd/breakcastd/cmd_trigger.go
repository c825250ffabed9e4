/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"

	"github.com/spf13/cobra"
)

var triggerBreakingCmd = &cobra.Command{
	Use:   "trigger-breaking",
	Short: "Build and play a breaking-news break immediately, out of band",
	RunE:  runTriggerBreaking,
}

func init() {
	rootCmd.AddCommand(triggerBreakingCmd)
}

func runTriggerBreaking(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	return a.scheduler.TriggerBreaking(context.Background())
}
