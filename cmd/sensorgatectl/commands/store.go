package commands

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ekiciact/SensorNet-Manager/internal/storagemgr"
)

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Administer the sensorgate relational store directly",
	}

	cmd.AddCommand(storeResetCmd())

	return cmd
}

func storeResetCmd() *cobra.Command {
	var (
		dsn       string
		tableName string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Truncate every stored reading",
		Long: "reset connects to the store directly (bypassing the admin surface, which is " +
			"read-only) and deletes every row. Use with care: this does not go through the " +
			"running gateway and takes effect immediately.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if dsn == "" {
				return errDSNRequired
			}

			if !force {
				confirmed, err := confirmDanger(fmt.Sprintf("This will delete every row in %q", tableName), "reset")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Aborted.")
					return nil
				}
			}

			store := storagemgr.NewGormStore(dsn, tableName)
			if err := store.Connect(); err != nil {
				return fmt.Errorf("connect to store: %w", err)
			}
			defer store.Disconnect()

			if err := store.Truncate(); err != nil {
				return fmt.Errorf("truncate store: %w", err)
			}

			fmt.Printf("Truncated %q.\n", tableName)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dsn, "dsn", "", "store DSN (required; bare path for SQLite, postgres:// URL for Postgres)")
	flags.StringVar(&tableName, "table", "sensor_data", "table to truncate")
	flags.BoolVar(&force, "force", false, "skip the confirmation prompt")

	return cmd
}

var errDSNRequired = errors.New("--dsn flag is required")

// confirmDanger requires the operator to type confirmWord before proceeding.
// Ctrl+C is reported as a (false, nil) (aborted) result rather than an error.
func confirmDanger(label, confirmWord string) (bool, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("%s (type %q to confirm)", label, confirmWord),
		Validate: func(input string) error {
			if input != confirmWord {
				return fmt.Errorf("type %q to confirm", confirmWord)
			}
			return nil
		},
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("prompt: %w", err)
	}

	return result == confirmWord, nil
}
