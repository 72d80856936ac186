package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/autogate/pkg/log"
)

const configFlagName = "config"

func addConfigFlag(basename string, fs *pflag.FlagSet, target *string) {
	fs.StringVarP(target, configFlagName, "c", *target,
		fmt.Sprintf("Read configuration from the specified YAML file. Environment variables are read with the prefix %s_.", envPrefix(basename)))
}

func envPrefix(basename string) string {
	return strings.ToUpper(strings.ReplaceAll(basename, "-", "_"))
}

// loadConfig layers file, environment and flags into v and decodes the result
// into target. Explicitly set flags win over the environment, which wins over
// the file.
func loadConfig(v *viper.Viper, basename, cfgFile string, fs *pflag.FlagSet, target any) error {
	v.SetEnvPrefix(envPrefix(basename))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if ext := strings.TrimPrefix(filepath.Ext(cfgFile), "."); ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file(%s): %w", cfgFile, err)
		}
		log.Debug("Loaded configuration file", "file", v.ConfigFileUsed())
	}

	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	if target == nil {
		return nil
	}
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// watchConfig re-applies the reloadable settings whenever the file changes.
// Only the log level and the hooks registered with WithReloadFunc are live;
// everything else needs a restart.
func watchConfig(v *viper.Viper, hooks []ReloadFunc) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("Configuration file changed", "file", e.Name)
		if lvl := v.GetString("log.level"); lvl != "" && lvl != log.Level() {
			log.SetLevel(lvl)
			log.Info("Log level updated", "level", lvl)
		}
		for _, fn := range hooks {
			fn(v)
		}
	})
	v.WatchConfig()
}
