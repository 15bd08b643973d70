package commands

import (
	"encoding/json"
	"errors"

	"github.com/hupe1980/filesaga"
	"github.com/hupe1980/filesaga/internal/config"
	"github.com/spf13/cobra"
)

var (
	createUser string
	createPath string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a single file",
	Example: `  # Create /alice/notes.txt owned by alice
  TABLE_NAME=permissions BUCKET_NAME=user-data filesaga create --user alice --path /alice/notes.txt`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createUser, "user", "", "requesting user ID")
	createCmd.Flags().StringVar(&createPath, "path", "", "absolute file path, starting with /<user>/")
	_ = createCmd.MarkFlagRequired("user")
	_ = createCmd.MarkFlagRequired("path")
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	svc, err := buildService(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}

	resp, err := svc.Handle(cmd.Context(), filesaga.Request{
		UserID:   createUser,
		FilePath: createPath,
	})
	closeErr := svc.Close()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return errors.Join(enc.Encode(resp), closeErr)
}
