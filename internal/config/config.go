package config

import (
	"fmt"
	"time"

	"sheetvend-api/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Sheet    SheetConfig
	Regions  RegionsConfig
	Ledger   LedgerConfig
	Lock     LockConfig
	Telegram TelegramConfig
	Dispense DispenseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string  `envconfig:"APP_NAME" default:"sheetvend-api"`
	Environment string  `envconfig:"APP_ENV" default:"development"`
	Version     string  `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKey    string  `envconfig:"ADMIN_KEY" default:""` // X-Admin-Key for /admin routes
	AdminIDs    []int64 `envconfig:"ADMIN_IDS"`
	LogLevel    string  `envconfig:"LOG_LEVEL" default:"info"`
}

// SheetConfig selects and configures the shared inventory grid.
type SheetConfig struct {
	Backend string `envconfig:"SHEET_BACKEND" default:"sheets"` // sheets, sqlite or postgres

	// Google Sheets settings
	SpreadsheetID   string `envconfig:"GOOGLE_SHEET_ID" default:""`
	SheetName       string `envconfig:"GOOGLE_SHEET_NAME" default:"Sheet1"`
	CredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json"`
	CredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS" default:""`

	// SQL stand-in settings
	SQLitePath string `envconfig:"SHEET_SQLITE_PATH" default:"./data/sheet.db"`
	Host       string `envconfig:"SHEET_DB_HOST" default:"localhost"`
	Port       int    `envconfig:"SHEET_DB_PORT" default:"5432"`
	Name       string `envconfig:"SHEET_DB_NAME" default:"sheetvend"`
	User       string `envconfig:"SHEET_DB_USER" default:"postgres"`
	Password   string `envconfig:"SHEET_DB_PASS" default:""`
	SSLMode    string `envconfig:"SHEET_DB_SSLMODE" default:"disable"`
	GridName   string `envconfig:"SHEET_GRID_NAME" default:"inventory"`
}

// RegionsConfig binds the two pools to column lists: identifier, secret,
// status and an optional attribution column.
type RegionsConfig struct {
	PrimaryName      string `envconfig:"REGION_PRIMARY_NAME" default:"accounts"`
	PrimaryColumns   []int  `envconfig:"REGION_PRIMARY_COLUMNS" default:"1,2,3,4"`
	SecondaryName    string `envconfig:"REGION_SECONDARY_NAME" default:"emails"`
	SecondaryColumns []int  `envconfig:"REGION_SECONDARY_COLUMNS" default:"6,7,8"`
}

// LedgerConfig selects the durable store for user balances.
type LedgerConfig struct {
	Backend       string        `envconfig:"LEDGER_BACKEND" default:"file"` // file or mysql
	Path          string        `envconfig:"LEDGER_PATH" default:"./data/users.json"`
	RetryInterval time.Duration `envconfig:"LEDGER_RETRY_INTERVAL" default:"30s"`

	Host     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"LEDGER_DB_PORT" default:"3306"`
	Name     string `envconfig:"LEDGER_DB_NAME" default:"sheetvend"`
	User     string `envconfig:"LEDGER_DB_USER" default:"root"`
	Password string `envconfig:"LEDGER_DB_PASS" default:""`
}

// LockConfig selects the allocation serialization layer.
type LockConfig struct {
	Backend       string        `envconfig:"LOCK_BACKEND" default:"memory"` // memory or redis
	// TTL is the Redis lease; startup raises it to cover a 100-row allocation.
	TTL           time.Duration `envconfig:"LOCK_TTL" default:"4m"`
	WaitTimeout   time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"30s"`
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string        `envconfig:"LOCK_KEY_PREFIX" default:"sheetvend:lock"`
}

// TelegramConfig holds the bot token used for notifications and broadcasts.
type TelegramConfig struct {
	BotToken string `envconfig:"BOT_TOKEN" default:""`
}

// DispenseConfig holds allocation policy switches.
type DispenseConfig struct {
	EnforceBan bool `envconfig:"DISPENSE_ENFORCE_BAN" default:"false"`
}

// Build turns the column lists into regions, primary first.
func (r *RegionsConfig) Build() []model.Region {
	return []model.Region{
		regionFromColumns(r.PrimaryName, r.PrimaryColumns),
		regionFromColumns(r.SecondaryName, r.SecondaryColumns),
	}
}

func regionFromColumns(name string, cols []int) model.Region {
	region := model.Region{
		ID:               name,
		IdentifierColumn: cols[0],
		SecretColumn:     cols[1],
		StatusColumn:     cols[2],
	}
	if len(cols) > 3 {
		region.AttributionColumn = cols[3]
	}
	return region
}

// PostgresDSN returns the PostgreSQL connection string for the grid stand-in.
func (s *SheetConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// DSN returns the MySQL data source name for the ledger.
func (l *LedgerConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		l.User, l.Password, l.Host, l.Port, l.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (l *LockConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", l.RedisHost, l.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for name, cols := range map[string][]int{
		"REGION_PRIMARY_COLUMNS":   cfg.Regions.PrimaryColumns,
		"REGION_SECONDARY_COLUMNS": cfg.Regions.SecondaryColumns,
	} {
		if len(cols) != 3 && len(cols) != 4 {
			return nil, fmt.Errorf("failed to load config: %s needs 3 or 4 columns, got %d", name, len(cols))
		}
		for _, c := range cols {
			if c < 1 {
				return nil, fmt.Errorf("failed to load config: %s has non-positive column %d", name, c)
			}
		}
	}
	if cfg.Regions.PrimaryName == cfg.Regions.SecondaryName {
		return nil, fmt.Errorf("failed to load config: region names must differ, both are %q", cfg.Regions.PrimaryName)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
