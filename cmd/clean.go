package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"audiobook2renpy/internal/app"
	"audiobook2renpy/internal/storage"
	"audiobook2renpy/pkg/config"
)

var cleanProject string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove extracted audio clips",
	Long:  `Remove the extracted audio clips of a project so the next generate run extracts them again.`,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanProject, "project", "p", "", "Project name (defaults to config)")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cleanProject != "" {
		cfg.Project.Name = cleanProject
	}

	project := storage.NewProject(app.ProjectDir(cfg))
	if err := project.Lock(); err != nil {
		return err
	}
	defer func() { _ = project.Unlock() }()

	count, err := project.RemoveClips(cfg.Audio.FilePrefix)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d clip(s) from %s\n", count, project.AudioDir())
	return nil
}
