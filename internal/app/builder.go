package app

import (
	"path/filepath"

	"audiobook2renpy/internal/audio"
	"audiobook2renpy/internal/storage"
	"audiobook2renpy/pkg/config"
)

// ProjectDir is where the project named in cfg is generated.
func ProjectDir(cfg *config.Config) string {
	return filepath.Join(cfg.Project.OutputDir, sanitizeForPath(cfg.Project.Name))
}

func BuildService(cfg *config.Config) *Service {
	ffmpeg := audio.NewFFmpeg(cfg.Audio.FFmpegPath)

	return NewService(ServiceOptions{
		Config:  cfg,
		Project: storage.NewProject(ProjectDir(cfg)),
		Runner:  ffmpeg,
		Stream:  ffmpeg,
	})
}
