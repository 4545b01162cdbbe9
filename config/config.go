package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andys/moviesync/errs"
)

// Connection defaults applied when neither the file nor the environment
// names a value. There is deliberately no default password.
const (
	DefaultScheme   = "postgres"
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultUser     = "postgres"
	DefaultDatabase = "noname"
)

// Config holds the pipeline configuration
type Config struct {
	PersistencePath     string         `yaml:"persistence_file_path"`
	BatchSize           int            `yaml:"batch_size"`
	DeleteConsumedFiles bool           `yaml:"delete_consumed_files"`
	UniqueKeys          []string       `yaml:"unique_keys"`
	MovieCSV            string         `yaml:"movie_csv"`
	GenreData           GenreData      `yaml:"genre_data"`
	YearData            YearData       `yaml:"year_data"`
	CombineFile         CombineFile    `yaml:"combine_file"`
	Database            DatabaseConfig `yaml:"database,omitempty"`

	ConfigFile  string `yaml:"-"`
	Debug       bool   `yaml:"-"`
	Verbose     bool   `yaml:"-"`
	WorkerCount int    `yaml:"-"`
}

// GenreData locates the raw genre JSON and its CSV conversion.
type GenreData struct {
	JSON   string   `yaml:"genre_json"`
	CSV    string   `yaml:"genre_csv"`
	Header []string `yaml:"header"`
}

// YearData locates the raw year JSON and its CSV conversion.
type YearData struct {
	JSON   string   `yaml:"year_json"`
	CSV    string   `yaml:"year_csv"`
	Header []string `yaml:"header"`
}

// CombineFile describes how the converted files are merged into the load file.
type CombineFile struct {
	MergedCSV   string            `yaml:"merged_csv"`
	DropColumns []string          `yaml:"drop_columns"`
	DtypeMap    map[string]string `yaml:"dtype_map"`
	TablePK     string            `yaml:"table_pk"`
	RenameCols  map[string]string `yaml:"rename_cols"`
}

// DatabaseConfig holds either a full URL or the parts to assemble one.
type DatabaseConfig struct {
	URL      string `yaml:"url,omitempty"`
	Scheme   string `yaml:"scheme,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Name     string `yaml:"name,omitempty"`
}

// Load reads the YAML configuration file and overlays DATABASE_* environment variables
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Errorf(errs.NotFound, "load config", "no file found at %s", filename)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{ConfigFile: filename}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.New(errs.Configuration, "parse config", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.BatchSize < 0 {
		return nil, errs.Errorf(errs.Configuration, "parse config", "batch_size must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

// ApplyEnv overlays the DATABASE_* variables found by lookup onto cfg.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	db := &cfg.Database
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		db.URL = v
	}
	if v, ok := lookup("DATABASE_HOST"); ok && v != "" {
		db.Host = v
	}
	if v, ok := lookup("DATABASE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errs.Errorf(errs.Configuration, "read DATABASE_PORT", "invalid port %q", v)
		}
		db.Port = port
	}
	if v, ok := lookup("DATABASE_USERNAME"); ok && v != "" {
		db.User = v
	}
	if v, ok := lookup("DATABASE_PASSWORD"); ok && v != "" {
		db.Password = v
	}
	if v, ok := lookup("DATABASE_DB"); ok && v != "" {
		db.Name = v
	}
	return nil
}

// ConnectionString returns the database URL, assembling it from parts and
// defaults when no full URL was given.
func (cfg *Config) ConnectionString() (string, error) {
	return cfg.Database.ConnectionString()
}

// ConnectionString returns <scheme>://<user>:<password>@<host>:<port>/<database>.
func (d DatabaseConfig) ConnectionString() (string, error) {
	if d.URL != "" {
		u, err := url.Parse(d.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", errs.Errorf(errs.Configuration, "connection string", "invalid database URL %q", d.URL)
		}
		return d.URL, nil
	}

	scheme := orDefault(d.Scheme, DefaultScheme)
	host := orDefault(d.Host, DefaultHost)
	user := orDefault(d.User, DefaultUser)
	name := orDefault(d.Name, DefaultDatabase)
	port := d.Port
	if port == 0 {
		port = DefaultPort
	}

	var missing []string
	if d.Password == "" {
		missing = append(missing, "password")
	}
	if port < 0 || port > 65535 {
		return "", errs.Errorf(errs.Configuration, "connection string", "port %d out of range", port)
	}
	if len(missing) > 0 {
		return "", errs.Errorf(errs.Configuration, "connection string",
			"missing database %s (set DATABASE_URL or DATABASE_%s)",
			strings.Join(missing, ", "), strings.ToUpper(missing[0]))
	}

	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(user, d.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + name,
	}
	return u.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
