package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// envTemplate is the content written by env-init.
var envTemplate = map[string]string{
	"DATA_FILE":         "data/data.json",
	"TMP_DIR":           "data/tmp",
	"DB_DRIVER":         "postgres",
	"POSTGRES_HOST":     "localhost",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_DB":       "bizsync",
	"POSTGRES_USER":     "postgres",
	"POSTGRES_PASSWORD": "",
	"POSTGRES_SSL":      "false",
	"BUSINESS_LIMIT":    "0",
	"BATCH_SIZE":        "100",
	"CHUNK_MAX_MB":      "5",
	"METRICS_BACKEND":   "none",
	"LOG_LEVEL":         "info",
}

func newEnvInitCmd(a *app) *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "env-init",
		Short: "Write a " + envFile + " template",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return err
			}
			if err := godotenv.Write(envTemplate, path); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", envFile, "Destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
