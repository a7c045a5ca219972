// Package initcmder provides the init command for initializing a local
// .streamrelay directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamrelay/streamrelay/pkg/cliui"
	"github.com/streamrelay/streamrelay/pkg/config"
	"github.com/streamrelay/streamrelay/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .streamrelay/ directory in the current working directory.

Creates a local .streamrelay/ directory that takes precedence over the
default ~/.streamrelay/ directory for configuration and file backed quota
stores, and writes a config.toml into it.

--preset selects the written config: a preset name (openai, ollama) or an
http(s) URL serving a config.toml. Re-running with a preset overwrites the
existing config.toml.

Examples:
  streamrelay init
  streamrelay init --preset ollama
  streamrelay init --preset https://example.com/streamrelay/config.toml`

const initShortDesc string = "Initialize a local .streamrelay/ directory"

const fetchTimeout = 10 * time.Second

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset name (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", dotdir.DirName, err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	cfg, err := c.resolveConfig(ctx, w)
	if err != nil {
		return err
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking config: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s directory: %s\n",
		cliui.SuccessMark, dotdir.DirName, cliui.DimStyle.Render(dir))
	return nil
}

// resolveConfig returns the config selected by --preset, or nil without one.
func (c *initCommander) resolveConfig(ctx context.Context, w io.Writer) (*config.Config, error) {
	switch {
	case c.preset == "":
		return nil, nil

	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		var data []byte
		err := cliui.Step(w, "Fetching remote config", func() error {
			var err error
			data, err = fetchRemote(ctx, c.preset)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetching remote config: %w", err)
		}
		return config.ParseConfigTOML(data)

	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchRemote(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
