package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amrit2244/tally-einvoice-bridge/pkg/utils"
)

// IRP mode constants selecting the API base URL
const (
	ModeSandbox    = "SANDBOX"
	ModeProduction = "PRODUCTION"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Tally    TallyConfig    `mapstructure:"tally"`
	IRP      IRPConfig      `mapstructure:"irp"`
	Seller   SellerConfig   `mapstructure:"seller"`
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TallyConfig holds the Tally Prime HTTP gateway configuration
type TallyConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// URL returns the Tally gateway endpoint
func (t TallyConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", t.Host, t.Port)
}

// IRPConfig holds the e-invoicing service configuration. Mode selects
// the base URL at startup; tokens are mode-specific so the mode is not
// hot-swappable mid-session.
type IRPConfig struct {
	Mode            string        `mapstructure:"mode"`
	SandboxBaseURL  string        `mapstructure:"sandbox_base_url"`
	ProductionURL   string        `mapstructure:"production_base_url"`
	AuthPath        string        `mapstructure:"auth_path"`
	GeneratePath    string        `mapstructure:"generate_path"`
	CancelPath      string        `mapstructure:"cancel_path"`
	GetIRNPath      string        `mapstructure:"get_irn_path"`
	UserGSTIN       string        `mapstructure:"user_gstin"`
	AuthTimeout     time.Duration `mapstructure:"auth_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
}

// BaseURL returns the API host selected by the configured mode
func (i IRPConfig) BaseURL() string {
	if strings.EqualFold(i.Mode, ModeProduction) {
		return i.ProductionURL
	}
	return i.SandboxBaseURL
}

// SellerConfig holds the static seller block for the invoice schema.
// These fields describe the registered business and are mandatory for
// every outbound document.
type SellerConfig struct {
	LegalName string `mapstructure:"legal_name"`
	TradeName string `mapstructure:"trade_name"`
	Address1  string `mapstructure:"address1"`
	Address2  string `mapstructure:"address2"`
	Location  string `mapstructure:"location"`
	PinCode   int    `mapstructure:"pin_code"`
	StateCode string `mapstructure:"state_code"`
	Phone     string `mapstructure:"phone"`
	Email     string `mapstructure:"email"`
}

// AppConfig holds operator-level settings
type AppConfig struct {
	OperatorLogin string `mapstructure:"operator_login"`
	LookbackDays  int    `mapstructure:"lookback_days"`
	EnvFile       string `mapstructure:"env_file"`
	CredFile      string `mapstructure:"cred_file"`
	ReportDir     string `mapstructure:"report_dir"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8087)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Tally defaults: Tally Prime serves its XML gateway on 9000
	viper.SetDefault("tally.host", "localhost")
	viper.SetDefault("tally.port", 9000)
	viper.SetDefault("tally.timeout", 30*time.Second)

	// IRP defaults
	viper.SetDefault("irp.mode", ModeSandbox)
	viper.SetDefault("irp.sandbox_base_url", "https://einv-apisandbox.nic.in")
	viper.SetDefault("irp.production_base_url", "https://einvoice1.gst.gov.in")
	viper.SetDefault("irp.auth_path", "/eivital/v1.04/auth")
	viper.SetDefault("irp.generate_path", "/eicore/v1.03/Invoice")
	viper.SetDefault("irp.cancel_path", "/eicore/v1.03/Invoice/Cancel")
	viper.SetDefault("irp.get_irn_path", "/eicore/v1.03/Invoice/irn")
	viper.SetDefault("irp.auth_timeout", 30*time.Second)
	// Generate carries heavier server-side processing than auth
	viper.SetDefault("irp.generate_timeout", 60*time.Second)

	// App defaults
	viper.SetDefault("app.lookback_days", 7)
	viper.SetDefault("app.env_file", ".env")
	viper.SetDefault("app.cred_file", "data/credentials.json")
	viper.SetDefault("app.report_dir", "reports")

	// Database defaults
	viper.SetDefault("database.path", "data/einvoice.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("irp.mode", "IRP_MODE")
	viper.BindEnv("irp.user_gstin", "IRP_USER_GSTIN")
	viper.BindEnv("tally.port", "TALLY_PORT")
	viper.BindEnv("app.operator_login", "OPERATOR_LOGIN")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToUpper(c.IRP.Mode) {
	case ModeSandbox, ModeProduction:
	default:
		return fmt.Errorf("irp.mode must be %s or %s", ModeSandbox, ModeProduction)
	}

	if c.IRP.UserGSTIN == "" {
		return fmt.Errorf("irp.user_gstin is required")
	}
	if c.Tally.Port <= 0 || c.Tally.Port > 65535 {
		return fmt.Errorf("tally.port must be a valid port number")
	}
	if c.Seller.LegalName == "" {
		return fmt.Errorf("seller.legal_name is required")
	}
	if c.Seller.Address1 == "" {
		return fmt.Errorf("seller.address1 is required")
	}
	if c.Seller.Location == "" {
		return fmt.Errorf("seller.location is required")
	}
	if c.Seller.PinCode == 0 {
		return fmt.Errorf("seller.pin_code is required")
	}
	if c.Seller.StateCode == "" {
		return fmt.Errorf("seller.state_code is required")
	}
	if c.Seller.Email != "" {
		if err := utils.ValidateEmail(c.Seller.Email); err != nil {
			return fmt.Errorf("seller.email: %w", err)
		}
	}
	if c.App.LookbackDays <= 0 {
		return fmt.Errorf("app.lookback_days must be positive")
	}

	return nil
}
