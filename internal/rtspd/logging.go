package rtspd

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// InitLogger installs the process-wide slog logger: a tint console
// handler at the configured level, with source file paths trimmed
// relative to the project root the way the teacher's InitLogger does.
func InitLogger(config *Config) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := getProjectRoot(filename)

	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source, ok := a.Value.Any().(*slog.Source)
			if !ok {
				return a
			}
			if projectRoot != "" && strings.HasPrefix(source.File, projectRoot) {
				source.File = source.File[len(projectRoot)+1:]
			}
			return slog.Any(a.Key, source)
		}
		return a
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:       config.GetSlogLevel(),
		AddSource:   true,
		NoColor:     false,
		TimeFormat:  time.RFC3339,
		ReplaceAttr: replaceAttr,
	})

	slog.SetDefault(slog.New(handler))
}

// getProjectRoot infers the project root by dropping the file name and
// then two directories (internal/rtspd) from this file's path.
func getProjectRoot(file string) string {
	dir := file
	for level := 0; level < 3; level++ {
		i := strings.LastIndexByte(dir, os.PathSeparator)
		if i < 0 {
			return ""
		}
		dir = dir[:i]
	}
	return dir
}
