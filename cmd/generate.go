package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"audiobook2renpy/internal/app"
	"audiobook2renpy/internal/progress"
	"audiobook2renpy/pkg/config"
)

var (
	genAudio          string
	genSubtitles      string
	genEPUB           string
	genProject        string
	genOutput         string
	genOffset         int64
	genSplit          bool
	genGain           float64
	genSpeed          float64
	genShowUnresolved bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Ren'Py project",
	Long: `Generate a Ren'Py project from an audiobook, its SRT subtitles and,
optionally, the EPUB the audiobook was read from.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genAudio, "audio", "a", "", "Audiobook file (mp3, m4a, m4b)")
	generateCmd.Flags().StringVarP(&genSubtitles, "subtitles", "s", "", "SRT subtitles for the audiobook")
	generateCmd.Flags().StringVarP(&genEPUB, "epub", "e", "", "EPUB with rubies and illustrations")
	generateCmd.Flags().StringVarP(&genProject, "project", "p", "", "Project name (defaults to config)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Directory the project is created in")
	generateCmd.Flags().Int64Var(&genOffset, "offset", 0, "Cue padding in milliseconds, may be negative")
	generateCmd.Flags().BoolVar(&genSplit, "split", false, "Extract one audio clip per line")
	generateCmd.Flags().Float64Var(&genGain, "gain", 0, "Volume multiplier applied when converting")
	generateCmd.Flags().Float64Var(&genSpeed, "speed", 0, "Playback speed applied when converting")
	generateCmd.Flags().BoolVar(&genShowUnresolved, "show-unresolved", false, "List rubies that could not be placed (may spoil the story)")
	_ = generateCmd.MarkFlagRequired("audio")
	_ = generateCmd.MarkFlagRequired("subtitles")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)

	pipeline := app.NewPipeline(app.BuildService(cfg))

	events := progress.NewChannel()
	consumed := make(chan struct{})
	go func() {
		progress.NewReporter(os.Stderr).Consume(events)
		close(consumed)
	}()

	result, err := pipeline.Generate(ctx, app.GenerateRequest{
		Audio:     genAudio,
		Subtitles: genSubtitles,
		EPUB:      genEPUB,
		Split:     genSplit,
		OffsetMs:  cfg.Subtitles.OffsetMs,
	}, events)
	<-consumed
	if err != nil {
		return err
	}

	fmt.Println(renderReport(result, genShowUnresolved))
	if result.Audio.Failed > 0 {
		return errors.New("some audio clips failed to extract, rerun to retry them")
	}
	return nil
}

func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	if genProject != "" {
		cfg.Project.Name = genProject
	}
	if genOutput != "" {
		cfg.Project.OutputDir = genOutput
	}
	if cmd.Flags().Changed("offset") {
		cfg.Subtitles.OffsetMs = genOffset
	}
	if genGain > 0 {
		cfg.Audio.Gain = genGain
	}
	if genSpeed > 0 {
		cfg.Audio.Speed = genSpeed
	}
}
