package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/migrate"
	"github.com/robmartinson/tablecopy/internal/plan"
)

func envViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func TestLoadDefaults(t *testing.T) {
	s := Load(viper.New())

	if s.Source.Driver != database.DriverPostgres || !s.Source.Copy {
		t.Errorf("source = %+v", s.Source)
	}
	if s.Destination.Driver != database.DriverMySQL || s.Destination.Copy {
		t.Errorf("destination = %+v", s.Destination)
	}
	if s.BackupDir != "./backups/" || s.PlanFile != "full" || s.BatchSize != 500 {
		t.Errorf("settings = %+v", s)
	}
	if s.LogLevel != "info" || s.LogFormat != "console" || s.NoStage {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("DB_DATABASE", "app")
	t.Setenv("DB_USER", "reader")
	t.Setenv("DB_PASSWORD", " secret ")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("DB_SSH_KEY", "/keys/id_ed25519")
	t.Setenv("DB_SSH_HOST", "bastion")
	t.Setenv("DB_SSH_USER", "ops")
	t.Setenv("DB_SSH_PORT", "2222")
	t.Setenv("DB_COPY", "false")
	t.Setenv("MYSQL_DB_HOST", "mysql.internal")
	t.Setenv("MYSQL_DB_DATABASE", "app")
	t.Setenv("MYSQL_DB_USER", "writer")
	t.Setenv("MYSQL_DB_PASSWORD", "pw")
	t.Setenv("BACKUP_DIR", "/var/backups/app")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")

	s := Load(envViper())

	want := database.Config{
		Driver:   database.DriverPostgres,
		Host:     "pg.internal",
		Port:     6432,
		Database: "app",
		User:     "reader",
		Password: " secret ",
		SSLMode:  "require",
		SSHKey:   "/keys/id_ed25519",
		SSHUser:  "ops",
		SSHHost:  "bastion",
		SSHPort:  2222,
	}
	if s.Source != want {
		t.Errorf("source = %+v\nwant %+v", s.Source, want)
	}
	if s.Destination.Host != "mysql.internal" || s.Destination.User != "writer" || s.Destination.Port != 0 {
		t.Errorf("destination = %+v", s.Destination)
	}
	if s.BackupDir != "/var/backups/app" || s.BatchSize != 100 || s.PushgatewayURL != "http://pushgateway:9091" {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadPlan(t *testing.T) {
	p, err := Settings{}.LoadPlan()
	if err != nil || p.Name != "full" {
		t.Fatalf("default plan = %v, %v", p, err)
	}

	p, err = Settings{PlanFile: "mileage"}.LoadPlan()
	if err != nil || p.Source != plan.FromDestination {
		t.Fatalf("mileage plan = %v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte("name: roles\ntables:\n  - name: Role\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = Settings{PlanFile: path}.LoadPlan()
	if err != nil || p.Name != "roles" || len(p.Tables) != 1 {
		t.Fatalf("file plan = %v, %v", p, err)
	}

	if _, err := (Settings{PlanFile: "nope"}).LoadPlan(); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
}

func sqliteSettings(t *testing.T) Settings {
	dir := t.TempDir()
	return Settings{
		Source:      database.Config{Driver: database.DriverSQLite, Database: filepath.Join(dir, "src.db")},
		Destination: database.Config{Driver: database.DriverSQLite, Database: filepath.Join(dir, "dest.db")},
		BackupDir:   filepath.Join(dir, "backups"),
	}
}

func TestOpenStoresPerMode(t *testing.T) {
	s := sqliteSettings(t)
	ctx := context.Background()
	full := &plan.Plan{Name: "full", Source: plan.FromSource, Tables: []plan.TableSpec{{Name: "Role"}}}
	mileage := &plan.Plan{Name: "mileage", Source: plan.FromDestination, Tables: []plan.TableSpec{{Name: "Vehicle"}}}

	tests := []struct {
		name         string
		p            *plan.Plan
		mode         migrate.Mode
		source, dest bool
	}{
		{"run", full, migrate.ModeRun, true, true},
		{"extract", full, migrate.ModeExtractOnly, true, false},
		{"load", full, migrate.ModeLoadOnly, false, true},
		{"mileage", mileage, migrate.ModeRun, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := openStores(ctx, s, tt.p, tt.mode)
			if err != nil {
				t.Fatalf("openStores() error = %v", err)
			}
			defer st.Close()
			if (st.source != nil) != tt.source || (st.dest != nil) != tt.dest {
				t.Fatalf("source=%v dest=%v", st.source != nil, st.dest != nil)
			}

			pipe := newPipeline(s, tt.p, tt.mode, st, zerolog.Nop(), nil)
			if (pipe.Extractor != nil) != (tt.mode != migrate.ModeLoadOnly) {
				t.Errorf("extractor = %T", pipe.Extractor)
			}
			if (pipe.Loader != nil) != (tt.mode != migrate.ModeExtractOnly) {
				t.Errorf("loader = %T", pipe.Loader)
			}
			if pipe.Stager == nil || pipe.Stager.Dir != s.BackupDir {
				t.Errorf("stager = %+v", pipe.Stager)
			}
		})
	}
}

func TestOpenStoresConnectionError(t *testing.T) {
	s := Settings{Source: database.Config{Driver: database.DriverPostgres}}
	p := &plan.Plan{Source: plan.FromSource, Tables: []plan.TableSpec{{Name: "Role"}}}

	_, err := openStores(context.Background(), s, p, migrate.ModeExtractOnly)
	if _, ok := err.(*database.ConnectionError); !ok {
		t.Fatalf("error = %v, want *database.ConnectionError", err)
	}
}

func TestNewPipelineNoStage(t *testing.T) {
	s := sqliteSettings(t)
	s.NoStage = true
	s.BatchSize = 50
	p := &plan.Plan{Source: plan.FromSource, Tables: []plan.TableSpec{{Name: "Role"}}}
	st, err := openStores(context.Background(), s, p, migrate.ModeRun)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	pipe := newPipeline(s, p, migrate.ModeRun, st, zerolog.Nop(), nil)
	if pipe.Stager != nil {
		t.Fatalf("stager = %+v, want nil", pipe.Stager)
	}
	if l := pipe.Loader.(*migrate.Loader); l.BatchSize != 50 {
		t.Fatalf("BatchSize = %d", l.BatchSize)
	}
	if pipe.RunID == "" {
		t.Fatalf("missing run id")
	}
}

func TestCheckPlan(t *testing.T) {
	s := sqliteSettings(t)
	ctx := context.Background()
	dest, err := database.Open(ctx, database.RoleDestination, s.Destination)
	if err != nil {
		t.Fatal(err)
	}
	defer dest.Close()
	for _, stmt := range []string{
		`CREATE TABLE "Role" (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE "User" (id INTEGER PRIMARY KEY, roleID INTEGER REFERENCES "Role"(id))`,
	} {
		if _, err := dest.DB.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	good := &plan.Plan{Name: "good", Tables: []plan.TableSpec{{Name: "Role"}, {Name: "User"}}}
	if err := checkPlan(ctx, &out, good, dest); err != nil {
		t.Fatalf("checkPlan(good) error = %v", err)
	}

	out.Reset()
	bad := &plan.Plan{Name: "bad", Tables: []plan.TableSpec{{Name: "User"}, {Name: "Role"}}}
	if err := checkPlan(ctx, &out, bad, dest); err == nil {
		t.Fatalf("checkPlan(bad) succeeded")
	}
	if !strings.Contains(out.String(), "User is listed before Role") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestPrintPlan(t *testing.T) {
	p, err := plan.Builtin("mileage")
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	printPlan(&out, p)
	if !strings.Contains(out.String(), "1. Vehicle -> Mileage") {
		t.Fatalf("output = %q", out.String())
	}
}
