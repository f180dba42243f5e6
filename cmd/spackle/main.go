// Command spackle bundles JavaScript modules.
//
//	spackle src/main.js
//	spackle --config spackle.config.json --out dist --iife
//	spackle --watch src/main.js
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/spackle-js/spackle/internal/config"
	"github.com/spackle-js/spackle/pkg/api"
)

var errPrint = color.New(color.FgRed, color.Bold)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errPrint.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	outDir     string
	external   []string
	iife       bool
	require    bool
	keepTemps  bool
	watch      bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "spackle [entries...]",
		Short:         "Bundle JavaScript modules into single files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&f, args)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (default spackle.config.json when present)")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "output directory (default dist)")
	cmd.Flags().StringSliceVar(&f.external, "external", nil, "specifiers kept external")
	cmd.Flags().BoolVar(&f.iife, "iife", false, "wrap output in an IIFE")
	cmd.Flags().BoolVar(&f.require, "require", false, "detect CommonJS require() calls")
	cmd.Flags().BoolVar(&f.keepTemps, "keep-temps", false, "disable the inliner, keep synthesized temporaries")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "rebuild on file changes")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "logrus level (default warning)")
	return cmd
}

func run(f *flags, args []string) error {
	fs := afero.NewOsFs()
	cfg, err := mergedConfig(fs, f, args)
	if err != nil {
		return err
	}
	if len(cfg.Entries) == 0 {
		return fmt.Errorf("no entries: pass entry files or configure them")
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	build := func() error {
		outputs, err := api.Build(api.BuildOptions{
			Entries:        cfg.Entries,
			Require:        cfg.Require,
			DisableInliner: cfg.DisableInliner,
			External:       cfg.ExternalModules,
			Libs:           cfg.LibModules,
			Format:         format(cfg),
			FS:             fs,
			Logger:         log,
		})
		if err != nil {
			return err
		}
		for _, out := range outputs {
			path := filepath.Join(cfg.OutDir, out.Name+".js")
			if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := afero.WriteFile(fs, path, []byte(out.Contents), 0o644); err != nil {
				return err
			}
			log.Infof("wrote %s (%s, %d bytes)", path, out.Kind, len(out.Contents))
		}
		return nil
	}

	if err := build(); err != nil {
		if !cfg.Watch {
			return err
		}
		errPrint.Fprintln(os.Stderr, "build failed:", err)
	}
	if !cfg.Watch {
		return nil
	}
	return watch(cfg, log, build)
}

// mergedConfig loads the config file when present and lets flags override
// it.
func mergedConfig(fs afero.Fs, f *flags, args []string) (*config.Config, error) {
	cfg := &config.Config{Entries: map[string]string{}}

	path := f.configPath
	if path == "" {
		if ok, _ := afero.Exists(fs, "spackle.config.json"); ok {
			path = "spackle.config.json"
		}
	}
	if path != "" {
		loaded, err := config.Load(fs, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if cfg.Entries == nil {
			cfg.Entries = map[string]string{}
		}
	}

	for _, entry := range args {
		name := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
		cfg.Entries[name] = entry
	}
	if f.iife {
		cfg.Module = config.ModuleIIFE
	}
	if f.require {
		cfg.Require = true
	}
	if f.keepTemps {
		cfg.DisableInliner = true
	}
	if f.watch {
		cfg.Watch = true
	}
	cfg.ExternalModules = append(cfg.ExternalModules, f.external...)
	if f.outDir != "" {
		cfg.OutDir = f.outDir
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "dist"
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warning"
	}
	return cfg, nil
}

func format(cfg *config.Config) api.Format {
	if cfg.Module == config.ModuleIIFE {
		return api.FormatIIFE
	}
	return api.FormatESM
}

// watch rebuilds whenever a file under an entry's directory tree changes.
// Watching directories rather than the resolved module graph is coarse but
// robust: new files and renames are picked up without re-deriving the
// graph after every build.
func watch(cfg *config.Config, log *logrus.Logger, build func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	for _, entry := range cfg.Entries {
		dirs[filepath.Dir(entry)] = true
	}
	for dir := range dirs {
		if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err == nil && info.IsDir() && !strings.Contains(path, "node_modules") {
				return watcher.Add(path)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	log.Info("watching for changes")

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Infof("%s changed, rebuilding", ev.Name)
			if err := build(); err != nil {
				errPrint.Fprintln(os.Stderr, "build failed:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watch error: %v", err)
		case <-sigs:
			return nil
		}
	}
}
