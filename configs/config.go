package config

import "os"

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	LinkedInClientID      string
	LinkedInClientSecret  string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	PublicBaseURL         string
	SecretKey             string
	VaultKey              string
	SchedulerSecret       string
	CookieName            string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		LinkedInClientID:      getEnv("LINKEDIN_CLIENT_ID", ""),
		LinkedInClientSecret:  getEnv("LINKEDIN_CLIENT_SECRET", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		SecretKey:             getEnv("SECRET_KEY", ""),
		VaultKey:              getEnv("VAULT_KEY", ""),
		SchedulerSecret:       getEnv("SCHEDULER_SECRET", ""),
		CookieName:            getEnv("COOKIE_NAME", "postbridge_session"),
	}
}

// RedirectURI builds the OAuth callback URL for a platform from the public
// base URL.
func (c *Config) RedirectURI(platform string) string {
	return c.PublicBaseURL + "/auth/" + platform + "/callback"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
