package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string
		WorkDir  string
		Build    string

		SecretKey        string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Ledger   LedgerConfig
		Database DatabaseConfig
		Poll     PollConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	// LedgerConfig locates the remote change-request ledger and record store.
	LedgerConfig struct {
		BaseURL           string
		RecordsBaseURL    string
		RequestTimeout    time.Duration
		AdminUsername     string
		AdminPasswordHash string
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// PollConfig holds the per-consumer reconciliation intervals.
	// Each view keeps its own cadence; this is deliberately not one global constant.
	PollConfig struct {
		AttendanceInterval time.Duration
		MarksInterval      time.Duration
		FeeInterval        time.Duration
		TestMarksInterval  time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "n0q5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("ledgerBaseURL", "http://localhost:8000")
	conf.SetDefault("ledgerRecordsBaseURL", "http://localhost:8000")
	conf.SetDefault("ledgerRequestTimeout", 5*time.Second)
	conf.SetDefault("ledgerAdminUsername", "admin")
	conf.SetDefault("ledgerAdminPasswordHash", "")
	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbName", "darasa")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbDisableTLS", true)
	conf.SetDefault("pollAttendanceInterval", 30*time.Second)
	conf.SetDefault("pollMarksInterval", 30*time.Second)
	conf.SetDefault("pollFeeInterval", 15*time.Second)
	conf.SetDefault("pollTestMarksInterval", 10*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         testMode,
		AppName:          conf.GetString("appName"),
		WorkDir:          wd,
		Build:            conf.GetString("build"),
		SecretKey:        conf.GetString("secretKey"),
		DefaultFromEmail: mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Ledger: LedgerConfig{
			BaseURL:           conf.GetString("ledgerBaseURL"),
			RecordsBaseURL:    conf.GetString("ledgerRecordsBaseURL"),
			RequestTimeout:    conf.GetDuration("ledgerRequestTimeout"),
			AdminUsername:     conf.GetString("ledgerAdminUsername"),
			AdminPasswordHash: conf.GetString("ledgerAdminPasswordHash"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Poll: PollConfig{
			AttendanceInterval: conf.GetDuration("pollAttendanceInterval"),
			MarksInterval:      conf.GetDuration("pollMarksInterval"),
			FeeInterval:        conf.GetDuration("pollFeeInterval"),
			TestMarksInterval:  conf.GetDuration("pollTestMarksInterval"),
		},
	}
}
