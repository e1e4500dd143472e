package app

import (
	"audiobook2renpy/internal/audio"
	"audiobook2renpy/internal/storage"
	"audiobook2renpy/pkg/config"
)

type Service struct {
	cfg       *config.Config
	project   *storage.Project
	extractor *audio.Extractor
	converter *audio.Converter
}

type ServiceOptions struct {
	Config  *config.Config
	Project *storage.Project
	Runner  audio.Runner
	Stream  audio.StreamRunner
}

func NewService(opts ServiceOptions) *Service {
	svc := &Service{
		cfg:     opts.Config,
		project: opts.Project,
	}
	if opts.Runner != nil {
		svc.extractor = audio.NewExtractor(opts.Runner)
	}
	if opts.Stream != nil {
		svc.converter = audio.NewConverter(opts.Stream)
	}
	return svc
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

func (s *Service) Project() *storage.Project {
	return s.project
}

func (s *Service) Extractor() *audio.Extractor {
	return s.extractor
}

func (s *Service) Converter() *audio.Converter {
	return s.converter
}
