package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// Viper keys. With AutomaticEnv each key is read from the upper-cased
// environment variable of the same name.
const (
	keyPlanFile  = "plan_file"
	keyBackupDir = "backup_dir"
	keyNoStage   = "no_stage"
	keyBatchSize = "batch_size"
	keyLogLevel  = "log_level"
	keyLogFormat = "log_format"
	keyPushURL   = "pushgateway_url"
)

// Settings is everything a command needs, resolved from flags, environment
// and the optional config file.
type Settings struct {
	Source      database.Config
	Destination database.Config

	PlanFile  string
	BackupDir string
	NoStage   bool
	BatchSize int

	LogLevel       string
	LogFormat      string
	PushgatewayURL string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_driver", database.DriverPostgres)
	v.SetDefault("db_copy", true)
	v.SetDefault("mysql_db_driver", database.DriverMySQL)
	v.SetDefault(keyPlanFile, "full")
	v.SetDefault(keyBackupDir, "./backups/")
	v.SetDefault(keyBatchSize, 500)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "console")
}

// Load resolves Settings from v. The source store is configured with DB_*
// variables and the destination with MYSQL_DB_*.
func Load(v *viper.Viper) Settings {
	setDefaults(v)
	return Settings{
		Source:         storeConfig(v, "db"),
		Destination:    storeConfig(v, "mysql_db"),
		PlanFile:       v.GetString(keyPlanFile),
		BackupDir:      v.GetString(keyBackupDir),
		NoStage:        v.GetBool(keyNoStage),
		BatchSize:      v.GetInt(keyBatchSize),
		LogLevel:       v.GetString(keyLogLevel),
		LogFormat:      v.GetString(keyLogFormat),
		PushgatewayURL: v.GetString(keyPushURL),
	}
}

func storeConfig(v *viper.Viper, prefix string) database.Config {
	get := func(name string) string { return strings.TrimSpace(v.GetString(prefix + "_" + name)) }
	return database.Config{
		Driver:        get("driver"),
		URL:           get("url"),
		Host:          get("host"),
		Port:          v.GetInt(prefix + "_port"),
		Database:      get("database"),
		User:          get("user"),
		Password:      v.GetString(prefix + "_password"),
		SSLMode:       get("sslmode"),
		SSHKey:        get("ssh_key"),
		SSHUser:       get("ssh_user"),
		SSHHost:       get("ssh_host"),
		SSHPort:       v.GetInt(prefix + "_ssh_port"),
		SSHKnownHosts: get("ssh_known_hosts"),
		Copy:          v.GetBool(prefix + "_copy"),
	}
}

// LoadPlan returns the plan named by PlanFile: a YAML file when one exists at
// that path, otherwise a built-in plan of that name.
func (s Settings) LoadPlan() (*plan.Plan, error) {
	name := s.PlanFile
	if name == "" {
		name = "full"
	}
	if _, err := os.Stat(name); err == nil {
		return plan.Load(name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return plan.Builtin(name)
}
