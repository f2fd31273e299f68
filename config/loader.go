package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/runkit/logger"
)

// FileSystem is the part of the file system the loader touches.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem reads the process file system.
type RealFileSystem struct{}

func (*RealFileSystem) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func (*RealFileSystem) LoadEnv(p string) error {
	return godotenv.Load(p)
}

// Resolver finds the config.yml and .env files of a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files a load reads. Empty means none was found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles keeps the explicit paths in opts and searches for the rest.
// Directories are tried in order cmd/<service>, config/<service>, config and
// the working directory, each also from one and two levels up.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	dirs := searchDirs(serviceName)
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(dirs, "config.yml")
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(dirs, ".env."+serviceName, ".env")
	}
	return files
}

// first returns the first existing file, trying every directory for a
// name before moving to the next name.
func (r *Resolver) first(dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			p := "./" + name
			if dir != "." {
				p = dir + "/" + name
			}
			if r.FileSystem.Exists(p) {
				return p
			}
		}
	}
	return ""
}

func searchDirs(serviceName string) []string {
	names := []string{serviceName}
	// "acme-runkit" also matches cmd/runkit.
	if i := strings.LastIndex(serviceName, "-"); i >= 0 {
		names = append(names, serviceName[i+1:])
	}

	var rel []string
	for _, name := range names {
		rel = append(rel, path.Join("cmd", name))
	}
	for _, name := range names {
		rel = append(rel, path.Join("config", name))
	}
	rel = append(rel, "config", ".")

	var dirs []string
	for _, r := range rel {
		for _, up := range []string{".", "..", "../.."} {
			if r == "." {
				dirs = append(dirs, up)
				continue
			}
			dirs = append(dirs, up+"/"+r)
		}
	}
	return dirs
}

// LoaderConfig holds the loader's file system and explicit file paths.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the file system, mainly for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile skips the search for config.yml.
func WithConfigFile(p string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = p }
}

// WithEnvFile skips the search for the .env file.
func WithEnvFile(p string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = p }
}

// LoadConfig unmarshals the configuration of serviceName into cfg. The
// config file is the base layer; the .env file and the process environment
// override it. Unreadable files are logged and skipped.
func LoadConfig(serviceName string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: &RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(serviceName, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("Config file could not be read", map[string]interface{}{
				"file":  files.ConfigFile,
				"error": err.Error(),
			})
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("Env file could not be loaded", map[string]interface{}{
				"file":  files.EnvFile,
				"error": err.Error(),
			})
		}
	}
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

// bindEnv sets every environment variable under each nested key it could
// name, so ENGINE_RETRY_MAX_ATTEMPTS reaches engine.retry.max_attempts.
func bindEnv(v *viper.Viper) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, variant := range generateEnvKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// maxSplitParts bounds the keys whose every split is generated.
const maxSplitParts = 6

// generateEnvKeyVariants returns the lower-cased key with each underscore
// read as either a nesting dot or a literal underscore. Long keys only get
// the all-underscore and all-dot forms.
func generateEnvKeyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) > maxSplitParts {
		return []string{strings.Join(parts, "_"), strings.Join(parts, ".")}
	}

	variants := []string{parts[0]}
	for _, part := range parts[1:] {
		next := make([]string, 0, 2*len(variants))
		for _, prefix := range variants {
			next = append(next, prefix+"_"+part, prefix+"."+part)
		}
		variants = next
	}
	return variants
}
