package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"audiobook2renpy/internal/audio"
	"audiobook2renpy/internal/progress"
	"audiobook2renpy/pkg/config"
)

var (
	convertGain  float64
	convertSpeed float64
)

var convertCmd = &cobra.Command{
	Use:   "convert <audio>",
	Short: "Convert an audiobook to mp3",
	Long:  `Convert an m4b/m4a audiobook to mp3 next to the source, optionally changing volume and speed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().Float64Var(&convertGain, "gain", 0, "Volume multiplier")
	convertCmd.Flags().Float64Var(&convertSpeed, "speed", 0, "Playback speed")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	opts := audio.ConvertOptions{Gain: cfg.Audio.Gain, Speed: cfg.Audio.Speed}
	if convertGain > 0 {
		opts.Gain = convertGain
	}
	if convertSpeed > 0 {
		opts.Speed = convertSpeed
	}

	converter := audio.NewConverter(audio.NewFFmpeg(cfg.Audio.FFmpegPath))

	events := progress.NewChannel()
	consumed := make(chan struct{})
	go func() {
		progress.NewReporter(os.Stderr).Consume(events)
		close(consumed)
	}()

	dst, err := converter.Convert(ctx, args[0], opts, events)
	progress.Send(events, progress.Done())
	<-consumed
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ Converted: " + dst))
	return nil
}
