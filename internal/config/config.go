package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Model    ModelConfig
	Storage  StorageConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	DashboardTTLSeconds int
}

// ForecastConfig holds the default replenishment and forecasting knobs;
// requests may override the day parameters within bounds.
type ForecastConfig struct {
	HorizonDays         int
	LeadTimeDays        int
	BufferDays          int
	ServiceLevelZ       float64
	OrderingCost        float64
	HoldingCostPerUnit  float64
	AnnualizationFactor float64
	ReorderPolicy       string
	WorkerCount         int
}

// ModelConfig tunes per-product demand model training.
type ModelConfig struct {
	RidgeLambda     float64
	HoldoutFraction float64
}

// StorageConfig points at the S3-compatible bucket for model artifacts.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DriveConfig configures Google Drive dataset ingestion.
type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "demandcast")
		viper.SetDefault("DB_SSLMODE", "disable")

		viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
		viper.SetDefault("APP_DATA_DIR", "./data/output")

		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_DASHBOARD_TTL_SECONDS", 60)

		viper.SetDefault("FORECAST_HORIZON_DAYS", 30)
		viper.SetDefault("FORECAST_LEAD_TIME_DAYS", 5)
		viper.SetDefault("FORECAST_BUFFER_DAYS", 7)
		viper.SetDefault("FORECAST_SERVICE_LEVEL_Z", 1.65)
		viper.SetDefault("FORECAST_ORDERING_COST", 100.0)
		viper.SetDefault("FORECAST_HOLDING_COST_PER_UNIT", 2.0)
		viper.SetDefault("FORECAST_ANNUALIZATION_FACTOR", 12.0)
		viper.SetDefault("FORECAST_REORDER_POLICY", "simplified")
		viper.SetDefault("FORECAST_WORKER_COUNT", 8)

		viper.SetDefault("MODEL_RIDGE_LAMBDA", 1.0)
		viper.SetDefault("MODEL_HOLDOUT_FRACTION", 0.2)

		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "")
		viper.SetDefault("STORAGE_ACCESS_KEY", "")
		viper.SetDefault("STORAGE_SECRET_KEY", "")
		viper.SetDefault("STORAGE_BUCKET", "demandcast-models")
		viper.SetDefault("STORAGE_USE_SSL", true)

		viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
		viper.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Enabled:  viper.GetBool("DB_ENABLED"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				UploadDir: viper.GetString("APP_UPLOAD_DIR"),
				DataDir:   viper.GetString("APP_DATA_DIR"),
			},
			Cache: CacheConfig{
				Enabled:             viper.GetBool("CACHE_ENABLED"),
				RedisURL:            viper.GetString("REDIS_URL"),
				RedisHost:           viper.GetString("REDIS_HOST"),
				RedisPort:           viper.GetString("REDIS_PORT"),
				RedisPassword:       viper.GetString("REDIS_PASSWORD"),
				RedisDB:             viper.GetInt("REDIS_DB"),
				DashboardTTLSeconds: viper.GetInt("CACHE_DASHBOARD_TTL_SECONDS"),
			},
			Forecast: ForecastConfig{
				HorizonDays:         viper.GetInt("FORECAST_HORIZON_DAYS"),
				LeadTimeDays:        viper.GetInt("FORECAST_LEAD_TIME_DAYS"),
				BufferDays:          viper.GetInt("FORECAST_BUFFER_DAYS"),
				ServiceLevelZ:       viper.GetFloat64("FORECAST_SERVICE_LEVEL_Z"),
				OrderingCost:        viper.GetFloat64("FORECAST_ORDERING_COST"),
				HoldingCostPerUnit:  viper.GetFloat64("FORECAST_HOLDING_COST_PER_UNIT"),
				AnnualizationFactor: viper.GetFloat64("FORECAST_ANNUALIZATION_FACTOR"),
				ReorderPolicy:       viper.GetString("FORECAST_REORDER_POLICY"),
				WorkerCount:         viper.GetInt("FORECAST_WORKER_COUNT"),
			},
			Model: ModelConfig{
				RidgeLambda:     viper.GetFloat64("MODEL_RIDGE_LAMBDA"),
				HoldoutFraction: viper.GetFloat64("MODEL_HOLDOUT_FRACTION"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			},
			Drive: DriveConfig{
				CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
				FolderID:        viper.GetString("GOOGLE_DRIVE_FOLDER_ID"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
