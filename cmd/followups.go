package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcjefferson/cliniflow2026-sub001/store"
)

func followUpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followups",
		Short: "Follow-up maintenance commands",
	}

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run one follow-up processing pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			processor, err := rt.newProcessor(store.NewGormExecutionStore(rt.db))
			if err != nil {
				return err
			}
			processed, err := processor.Process(cmd.Context())
			if err != nil {
				return fmt.Errorf("process follow-ups: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d follow-up(s)\n", processed)
			return nil
		},
	}

	var olderThan string
	expireCmd := &cobra.Command{
		Use:   "expire-claims",
		Short: "Fail executions left CLAIMED by a crashed process",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			after := rt.cfg.FollowUpStaleClaimAfter
			if olderThan != "" {
				if after, err = parseDuration(olderThan); err != nil {
					return err
				}
			}
			n, err := expireStaleClaims(cmd.Context(), rt, store.NewGormExecutionStore(rt.db), after)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d stale claim(s)\n", n)
			return nil
		},
	}
	expireCmd.Flags().StringVar(&olderThan, "older-than", "", "claim age to treat as stale (defaults to FOLLOWUP_STALE_CLAIM_AFTER)")

	cmd.AddCommand(processCmd, expireCmd)
	return cmd
}
