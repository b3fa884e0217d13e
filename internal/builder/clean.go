package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/module"
	"github.com/k8ika0s/autobuild/internal/runner"
)

// Cleaner runs the clean command in module directories. The first failure
// stops the clean and nothing after it is touched.
type Cleaner struct {
	Root    string
	Runner  runner.Runner
	Command string
	Logger  *slog.Logger
}

// CleanAll cleans every directory under the modules root plus the custom
// mutator directory.
func (c *Cleaner) CleanAll(ctx context.Context) error {
	c.logger().Info("Performing full clean...")
	root := filepath.Join(c.Root, module.ModulesDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.MissingDir("", root)
		}
		return err
	}
	var dirs []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if isDir(filepath.Join(root, e.Name())) {
			dirs = append(dirs, filepath.Join(module.ModulesDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	dirs = append(dirs, module.CustomMutatorDir)
	for _, dir := range dirs {
		if err := c.clean(ctx, "", dir); err != nil {
			return err
		}
	}
	return nil
}

// CleanModules cleans the directory of each module id, in order.
func (c *Cleaner) CleanModules(ctx context.Context, ids []string) error {
	c.logger().Info("Cleaning modules: " + strings.Join(ids, " "))
	for _, id := range ids {
		if err := c.clean(ctx, id, module.Resolve(id).Dir); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cleaner) clean(ctx context.Context, id, rel string) error {
	dir := filepath.Join(c.Root, rel)
	if !isDir(dir) {
		return failure.MissingDir(id, dir)
	}
	line := c.Command
	if line == "" {
		line = DefaultCommands().Clean
	}
	if _, err := c.Runner.Run(ctx, runner.Command{Line: line, Dir: dir}); err != nil {
		return failure.Command(id, dir, line, err)
	}
	return nil
}

func (c *Cleaner) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
