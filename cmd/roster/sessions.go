package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/roster/internal/presentation/tui"
	redisAdapter "github.com/aretw0/roster/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and kill the live sessions of a running server",
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")
		if redisAddr, _ := cmd.Flags().GetString("redis"); redisAddr != "" {
			return listReplicas(cmd, redisAddr, asJSON)
		}

		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		infos, err := client.ListSessions(cmd.Context(), user)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), infos)
		}
		return printMarkdown(cmd.OutOrStdout(), tui.SessionTable(infos, time.Now()))
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one live session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		info, err := client.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), info)
		}
		return printMarkdown(cmd.OutOrStdout(), tui.SessionDetail(info))
	},
}

var sessionsKillCmd = &cobra.Command{
	Use:   "kill <session-id>...",
	Short: "Kill one or more live sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		failed := 0
		for _, raw := range args {
			id, err := parseID(raw)
			if err == nil {
				_, err = client.KillSession(cmd.Context(), id)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error killing '%s': %v\n", raw, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Killed session %d\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be killed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsKillCmd)

	sessionsCmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")
	sessionsLsCmd.Flags().String("user", "", "Only sessions of this user")
	sessionsLsCmd.Flags().String("redis", "", "List every replica's sessions from this redis address")
	sessionsLsCmd.Flags().String("redis-prefix", "roster:", "Key prefix used by the mirror")
}

func listReplicas(cmd *cobra.Command, addr string, asJSON bool) error {
	prefix, _ := cmd.Flags().GetString("redis-prefix")
	user, _ := cmd.Flags().GetString("user")
	mirror := redisAdapter.New(addr, "", 0, nil, redisAdapter.WithPrefix(prefix))
	defer mirror.Close()

	sessions, err := mirror.List(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([]tui.Replica, 0, len(sessions))
	kept := make([]redisAdapter.ReplicaSession, 0, len(sessions))
	for _, s := range sessions {
		if user != "" && s.User != user {
			continue
		}
		kept = append(kept, s)
		rows = append(rows, tui.Replica{Name: s.Replica, Info: s.Info})
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), kept)
	}
	return printMarkdown(cmd.OutOrStdout(), tui.ReplicaTable(rows, time.Now()))
}

// clientFor resolves the admin address from --admin or the configuration.
func clientFor(cmd *cobra.Command) (*adminClient, error) {
	if addr, _ := cmd.Flags().GetString("admin"); addr != "" {
		return newAdminClient(addr), nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Admin == "" {
		return nil, fmt.Errorf("no admin address: set --admin or admin in the configuration")
	}
	return newAdminClient(cfg.Admin), nil
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return id, nil
}
