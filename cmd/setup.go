package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"audiobook2renpy/internal/audio"
	"audiobook2renpy/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

const defaultHeaderContent = `define narrator = Character(None, kind=nvl)
define config.voice_filename_format = "audio/{filename}"
`

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long:  `Check for ffmpeg, create the template directory and write config.yaml.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("📚 audiobook2renpy Setup"))

	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Checking tools", func() error { return checkFFmpeg(cmd.Context(), cfg) }},
		{"Configuring project", func() error { return configureProject(cfg) }},
		{"Creating directories", func() error { return createDirectories(cfg) }},
		{"Configuring publishing", configurePublishing},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

func checkFFmpeg(ctx context.Context, cfg *config.Config) error {
	if !commandExists(cfg.Audio.FFmpegPath) {
		fmt.Println(warnStyle.Render("ffmpeg not found - install it from https://ffmpeg.org/download.html"))

		var path string
		if err := huh.NewInput().
			Title("Path to ffmpeg").
			Description("Leave empty to keep " + cfg.Audio.FFmpegPath).
			Value(&path).
			Run(); err != nil {
			return err
		}
		if path = strings.TrimSpace(path); path != "" {
			cfg.Audio.FFmpegPath = path
		}
	}

	var version string
	err := runWithSpinner("Checking ffmpeg", func() error {
		var err error
		version, err = audio.NewFFmpeg(cfg.Audio.FFmpegPath).Version(ctx)
		return err
	})
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("ffmpeg check failed: %v", err)))
		return nil
	}
	fmt.Println(infoStyle.Render(version))
	return nil
}

func configureProject(cfg *config.Config) error {
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing " + configPath).
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing " + configPath))
			return nil
		}
	}

	offset := strconv.FormatInt(cfg.Subtitles.OffsetMs, 10)
	threshold := strconv.FormatFloat(cfg.Ruby.SimilarityThreshold, 'f', -1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&cfg.Project.Name).
				Validate(required("Project name")),
			huh.NewInput().
				Title("Output directory").
				Description("Projects are created inside this directory").
				Value(&cfg.Project.OutputDir),
			huh.NewInput().
				Title("Template directory").
				Description("Copied into every new project; holds the script header").
				Value(&cfg.Project.TemplateDir),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Subtitle offset (ms)").
				Description("Pads every cue; negative values start lines earlier").
				Value(&offset).
				Validate(func(s string) error {
					_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					return err
				}),
			huh.NewInput().
				Title("Ruby similarity threshold").
				Description("0-1, how closely a line must resemble the ruby's paragraph").
				Value(&threshold).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil || v <= 0 || v > 1 {
						return fmt.Errorf("must be a number in (0, 1]")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Report weakly anchored images as unresolved?").
				Description("Otherwise they are dropped silently").
				Value(&cfg.Placement.DeferWeakAnchors),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Subtitles.OffsetMs, _ = strconv.ParseInt(strings.TrimSpace(offset), 10, 64)
	cfg.Ruby.SimilarityThreshold, _ = strconv.ParseFloat(strings.TrimSpace(threshold), 64)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Wrote " + configPath))
	return nil
}

func createDirectories(cfg *config.Config) error {
	for _, dir := range []string{cfg.Project.OutputDir, filepath.Join(cfg.Project.TemplateDir, "game")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	header := cfg.Project.Header
	if !filepath.IsAbs(header) {
		header = filepath.Join(cfg.Project.TemplateDir, header)
	}
	if _, err := os.Stat(header); os.IsNotExist(err) {
		if err := os.WriteFile(header, []byte(defaultHeaderContent), 0644); err != nil {
			return fmt.Errorf("write %s: %w", header, err)
		}
	}

	fmt.Println(successStyle.Render("✓ Created directories"))
	return nil
}

func configurePublishing() error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud Storage publishing?").
		Description("Lets `publish` upload finished projects (optional)").
		Value(&setup).
		Run(); err != nil {
		return err
	}
	if !setup {
		return nil
	}

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found - run `gcloud auth application-default login` once it is installed"))
	} else if getActiveProject() == "" {
		fmt.Println(warnStyle.Render("No active gcloud project - run `gcloud config set project <id>`"))
	}

	var bucket string
	if err := huh.NewInput().
		Title("GCS bucket").
		Value(&bucket).
		Validate(required("GCS bucket")).
		Run(); err != nil {
		return err
	}

	return writeEnvFile(map[string]string{"GCS_BUCKET": strings.TrimSpace(bucket)})
}

func getActiveProject() string {
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func writeEnvFile(env map[string]string) error {
	f, err := os.OpenFile(".env", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	order := []string{"GCS_BUCKET", "FFMPEG_PATH"}
	for _, key := range order {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}

	fmt.Println(successStyle.Render("✓ Updated .env file"))
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Put your Ren'Py base project in the template directory")
	fmt.Println("  2. Run: audiobook2renpy generate -a book.m4b -s book.srt -e book.epub --split")
	fmt.Println("  3. Open the generated project in the Ren'Py launcher")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
