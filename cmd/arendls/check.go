package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arendls/internal/diag"
	"arendls/internal/diagfmt"
	"arendls/internal/driver"
	"arendls/internal/engine"
	"arendls/internal/observ"
	"arendls/internal/project"
	"arendls/internal/source"
	"arendls/internal/ui"
	"arendls/internal/workspace"
)

var checkCmd = &cobra.Command{
	Use:   "check [library-dir...]",
	Short: "Load and typecheck libraries, then print their diagnostics",
	Long: `Load and typecheck each library with its tests, the same way the
server does, and print every diagnostic. The exit status is 1 when any
error is reported.`,
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	checkCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	checkCmd.Flags().Bool("timings", false, "print phase timings to stderr")
	checkCmd.Flags().String("format", "pretty", "diagnostic format (pretty|json)")
	checkCmd.Flags().Int("max-diagnostics", 0, "truncate the JSON list (0 keeps all)")
	checkCmd.Flags().Bool("preview", true, "show the offending source line")
}

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

// engineLocator finds module files through the engine's libraries.
type engineLocator struct {
	eng *driver.Engine
}

func (l engineLocator) ModuleFile(loc source.ModuleLocation) (string, bool) {
	return workspace.PathOf(l.eng.FindLibrary(loc.Library), loc.Path, loc.InTests)
}

// progress receives module events and phase labels.
type progress interface {
	engine.LoadListener
	Phase(label string)
}

type quietProgress struct{}

func (quietProgress) ModuleStatus(string, source.ModulePath, engine.ModuleStatus) {}
func (quietProgress) Phase(string)                                                 {}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	useColor, err := colorEnabled(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	heartbeat, _ := cmd.Flags().GetDuration("trace-heartbeat")
	ctx, cleanup, err := setupTracing(cmd.Context(), cfg.Trace, heartbeat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	eng := newEngine(cfg, log)
	timer := observ.NewTimer()

	if format == "pretty" && shouldUseTUI(mode) {
		events := make(ui.Events, 256)
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer close(events)
			checkLibraries(ctx, eng, args, events, timer, log)
		}()
		program := tea.NewProgram(ui.NewProgressModel("checking", events), tea.WithOutput(os.Stdout))
		_, uiErr := program.Run()
		<-done
		if uiErr != nil {
			return uiErr
		}
	} else {
		checkLibraries(ctx, eng, args, quietProgress{}, timer, log)
	}

	errs := append(eng.Errors().Items(), eng.LibraryErrors().Items()...)
	loc := engineLocator{eng: eng}
	base, _ := os.Getwd()
	out := cmd.OutOrStdout()
	if format == "json" {
		limit, _ := cmd.Flags().GetInt("max-diagnostics")
		if err := diagfmt.JSON(out, errs, loc, diagfmt.JSONOpts{BaseDir: base, Max: limit}); err != nil {
			return err
		}
	} else {
		preview, _ := cmd.Flags().GetBool("preview")
		diagfmt.Pretty(out, errs, loc, diagfmt.PrettyOpts{Color: useColor, BaseDir: base, ShowPreview: preview})
	}
	if timings, _ := cmd.Flags().GetBool("timings"); timings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}

	if n := countErrors(errs); n > 0 {
		return fmt.Errorf("%d errors", n)
	}
	return nil
}

// checkLibraries loads and typechecks every library in dirs, in order.
func checkLibraries(ctx context.Context, eng *driver.Engine, dirs []string, p progress, timer *observ.Timer, log *zap.Logger) {
	p.Phase("loading prelude")
	timer.Measure("prelude", func() string {
		if err := eng.LoadPrelude(ctx); err != nil {
			log.Error("prelude failed to load", zap.Error(err))
			return err.Error()
		}
		return ""
	})

	var libs []engine.Library
	for _, dir := range dirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			log.Warn("Cannot register library", zap.String("root", dir), zap.Error(err))
			continue
		}
		if filepath.Base(root) == project.ManifestName {
			root = filepath.Dir(root)
		}
		eng.AddLibraryDirectory(filepath.Dir(root))
		lib := eng.RegisterLibrary(ctx, root)
		if lib == nil {
			log.Warn("Cannot register library", zap.String("root", root))
			continue
		}
		p.Phase("loading " + lib.Name())
		timer.Measure("load "+lib.Name(), func() string {
			if !eng.LoadLibrary(ctx, lib, p) {
				return "failed"
			}
			if !eng.LoadTests(ctx, lib) {
				return "tests failed"
			}
			return ""
		})
		libs = append(libs, lib)
	}
	for _, lib := range libs {
		p.Phase("typechecking " + lib.Name())
		timer.Measure("typecheck "+lib.Name(), func() string {
			eng.TypecheckLibrary(ctx, lib)
			eng.TypecheckTests(ctx, lib, nil)
			return ""
		})
	}
}

func countErrors(errs []*diag.Error) int {
	n := 0
	for _, e := range errs {
		if e.Level == diag.LevelError {
			n++
		}
	}
	return n
}
