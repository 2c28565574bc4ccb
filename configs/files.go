package configs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/logs"
)

//go:embed schema.cue
var Schema string

var configFiles = cmds.Collect[string]("-config")

var fileNames = []string{
	"botrun.cue",
	".botrun.cue",
}

// FileLoader loads -config files, then botrun.cue or .botrun.cue from the working dir, the user config dir and /etc.
func FileLoader(
	logger logs.Logger,
) Loader {

	var paths []string
	defer func() {
		if len(paths) > 0 {
			logger.Info("config file",
				"paths", paths,
			)
		}
	}()

	// explicit files take precedence
	paths = append(paths, *configFiles...)

	// working directory
	if workingDir, err := os.Getwd(); err == nil {
		paths = append(paths, existing(workingDir)...)
	}

	// user config dir
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, existing(configDir)...)
	}

	// system wide dir
	paths = append(paths, existing("/etc")...)

	return NewLoader(paths, Schema)
}

func existing(dir string) (ret []string) {
	for _, filename := range fileNames {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			ret = append(ret, path)
		}
	}
	return
}
