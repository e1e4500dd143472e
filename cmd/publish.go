package cmd

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"audiobook2renpy/internal/app"
	"audiobook2renpy/internal/storage"
	"audiobook2renpy/pkg/config"
)

var publishProject string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload a generated project to Google Cloud Storage",
	Long:  `Upload a generated project to the bucket named by GCS_BUCKET. Files already uploaded are skipped.`,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishProject, "project", "p", "", "Project name (defaults to config)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if publishProject != "" {
		cfg.Project.Name = publishProject
	}
	if cfg.GCSBucket == "" {
		return errors.New("GCS_BUCKET is not set")
	}

	dir := app.ProjectDir(cfg)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("project %s: %w", dir, err)
	}

	project := storage.NewProject(dir)
	if err := project.Lock(); err != nil {
		return err
	}
	defer func() { _ = project.Unlock() }()

	publisher, err := storage.NewGCSPublisher(ctx, cfg.GCSBucket, path.Join(cfg.GCS.Prefix, filepath.Base(dir)))
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	var result storage.PublishResult
	err = runWithSpinner("Uploading project", func() error {
		var err error
		result, err = publisher.Publish(ctx, dir)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("Uploaded %d file(s), %d already present", result.Uploaded, result.Skipped)))
	return nil
}
