package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCmd(c *cli) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, job := range a.jobs.Definitions() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", job.Name, job.Spec)
			}
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, c, args[0])
		},
	}

	expire := &cobra.Command{
		Use:   "expire",
		Short: "Expire subscriptions whose end date has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, c, "expire-subscriptions")
		},
	}

	jobsCmd.AddCommand(list, run, expire)
	return jobsCmd
}

func runJob(cmd *cobra.Command, c *cli, name string) error {
	a, err := wire(cmd.Context(), c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.scheduler()
	if err != nil {
		return err
	}
	if err := s.RunNow(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s done\n", name)
	return nil
}
