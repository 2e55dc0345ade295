package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ilyakaznacheev/cleanenv"

	"sheetsql/internal/apperrors"
)

type DBConfig struct {
	Type           string `yaml:"type" json:"type" env:"SHEETSQL_DB_TYPE" env-default:"mysql"`
	Host           string `yaml:"host" json:"host" env:"SHEETSQL_DB_HOST"`
	Port           int    `yaml:"port" json:"port" env:"SHEETSQL_DB_PORT"`
	Username       string `yaml:"username" json:"username" env:"SHEETSQL_DB_USER"`
	Password       string `yaml:"password" json:"password" env:"SHEETSQL_DB_PASSWORD"`
	DatabaseName   string `yaml:"database_name" json:"database_name" env:"SHEETSQL_DB_NAME"`
	DSN            string `yaml:"dsn" json:"dsn" env:"SHEETSQL_DB_DSN"` // optional explicit DSN
	ConnectTimeout int    `yaml:"connect_timeout" json:"connect_timeout" env:"SHEETSQL_DB_CONNECT_TIMEOUT" env-default:"10"`
}

// Timeout is the connect timeout as a duration.
func (d DBConfig) Timeout() time.Duration {
	return time.Duration(d.ConnectTimeout) * time.Second
}

type LoadConfig struct {
	BatchSize int  `yaml:"batch_size" json:"batch_size" env:"SHEETSQL_BATCH_SIZE" env-default:"1000"`
	Replace   bool `yaml:"replace" json:"replace" env:"SHEETSQL_REPLACE"`
}

type BitableConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url" env:"SHEETSQL_BITABLE_BASE_URL" env-default:"https://open.feishu.cn"`
	AppID    string `yaml:"app_id" json:"app_id" env:"SHEETSQL_BITABLE_APP_ID"`
	AppToken string `yaml:"app_token" json:"app_token" env:"SHEETSQL_BITABLE_APP_TOKEN"`
	TableID  string `yaml:"table_id" json:"table_id" env:"SHEETSQL_BITABLE_TABLE_ID"`
	// AppSecret is never read from files.
	AppSecret string `yaml:"-" json:"-" env:"SHEETSQL_BITABLE_APP_SECRET"`
	// FieldTypes declares the remote type per column name.
	FieldTypes map[string]string `yaml:"field_types" json:"field_types"`
}

type LogConfig struct {
	Level       string `yaml:"level" json:"level" env:"SHEETSQL_LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" json:"development" env:"SHEETSQL_LOG_DEVELOPMENT"`
}

type AppConfig struct {
	Database DBConfig      `yaml:"database" json:"database"`
	Load     LoadConfig    `yaml:"load" json:"load"`
	Bitable  BitableConfig `yaml:"bitable" json:"bitable"`
	Log      LogConfig     `yaml:"log" json:"log"`
}

// LoadFile loads YAML (or JSON) config from path with environment overrides.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: read %s: %v", apperrors.ErrConfigLoad, path, err)
	}
	return cfg, nil
}

// FromEnv builds the config from environment variables and defaults only.
func FromEnv() (AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: environment: %v", apperrors.ErrConfigLoad, err)
	}
	return cfg, nil
}

// NormalizeDriver maps common aliases to canonical keys (keeps backwards compat).
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	default:
		return strings.ToLower(d)
	}
}

// BuildDriverAndDSN produces a driver name and DSN string for supported DB types.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		if t == "mysql" {
			if _, err := mysql.ParseDSN(db.DSN); err != nil {
				return "", "", fmt.Errorf("invalid mysql dsn: %w", err)
			}
		}
		return t, db.DSN, nil
	}

	switch t {
	case "postgres":
		driver = "postgres"
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
			Path:     "/" + db.DatabaseName,
			RawQuery: "sslmode=disable",
		}
		dsn = u.String()
	case "mysql":
		driver = "mysql"
		mc := mysql.NewConfig()
		mc.User = db.Username
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
		mc.DBName = db.DatabaseName
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	case "sqlite":
		driver = "sqlite"
		switch db.DatabaseName {
		case "":
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		case ":memory:":
			dsn = ":memory:"
		default:
			dsn = fmt.Sprintf("file:%s", db.DatabaseName)
		}
	case "sqlserver":
		driver = "sqlserver"
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
			RawQuery: url.Values{"database": {db.DatabaseName}}.Encode(),
		}
		dsn = u.String()
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}

// RedactDSN masks the password of a DSN for logging.
func RedactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
		return dsn
	}
	if mc, err := mysql.ParseDSN(dsn); err == nil && mc.Passwd != "" {
		mc.Passwd = "xxxxx"
		return mc.FormatDSN()
	}
	return dsn
}
