package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	RealtimeAddr        string // websocket gateway listener, e.g. ":8081"
	SessionSecret       string
	RealtimeSecret      string // signs realtime tickets; falls back to SessionSecret
	DatabaseURL         string
	RedisURL            string
	RunMigrations       bool
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	BrevoAPIKey         string
	MailFrom            string

	StorageProvider     string // "supabase" (default) or "minio"
	SupabaseURL         string
	SupabaseSecretKey   string // service_role key, not the anon key
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioUseSSL         bool
	MinioPublicURL      string
	ListingImagesBucket string
	MessageImagesBucket string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	sessionSecret := viper.GetString("SESSION_SECRET")
	realtimeSecret := viper.GetString("REALTIME_SECRET")
	if realtimeSecret == "" {
		realtimeSecret = sessionSecret
	}

	return &Config{
		Env:                 env,
		Port:                withDefault(viper.GetString("PORT"), "8080"),
		RealtimeAddr:        withDefault(viper.GetString("REALTIME_ADDR"), ":8081"),
		SessionSecret:       sessionSecret,
		RealtimeSecret:      realtimeSecret,
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		RunMigrations:       isTrue(viper.GetString("RUN_MIGRATIONS")),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   isTrue(viper.GetString("ALLOW_CROSS_SITE_DEV")),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		BrevoAPIKey:         withDefault(viper.GetString("BREVO_API_KEY"), viper.GetString("SENDINBLUE_API_KEY")),
		MailFrom:            viper.GetString("MAIL_FROM"),
		StorageProvider:     strings.ToLower(withDefault(viper.GetString("STORAGE_PROVIDER"), "supabase")),
		SupabaseURL:         viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   viper.GetString("SUPABASE_SECRET_KEY"),
		MinioEndpoint:       withDefault(viper.GetString("MINIO_ENDPOINT"), "localhost:9000"),
		MinioAccessKey:      viper.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:      viper.GetString("MINIO_SECRET_KEY"),
		MinioUseSSL:         isTrue(viper.GetString("MINIO_USE_SSL")),
		MinioPublicURL:      viper.GetString("MINIO_PUBLIC_URL"),
		ListingImagesBucket: withDefault(viper.GetString("LISTING_IMAGES_BUCKET"), "listing-images"),
		MessageImagesBucket: withDefault(viper.GetString("MESSAGE_IMAGES_BUCKET"), "message-images"),
	}, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func withDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
