package config

import "github.com/spf13/viper"

// Config holds typed configuration for the shell queue manager.
type Config struct {
	LogLevel    string
	HTTPPort    string
	MetricsAddr string
	ServerURL   string

	MaxHistory        int
	QueueLowThreshold int
	NotifyOnFailure   bool

	EmailEnabled    bool
	EmailHost       string
	EmailPort       int
	EmailUsername   string
	EmailPassword   string
	EmailFrom       string
	EmailRecipients []string

	OTelEndpoint string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:    v.GetString("log_level"),
		HTTPPort:    v.GetString("http_port"),
		MetricsAddr: v.GetString("metrics_addr"),
		ServerURL:   v.GetString("server_url"),

		MaxHistory:        v.GetInt("max_history"),
		QueueLowThreshold: v.GetInt("queue_low_threshold"),
		NotifyOnFailure:   v.GetBool("notify_on_failure"),

		EmailEnabled:    v.GetBool("email_enabled"),
		EmailHost:       v.GetString("email_host"),
		EmailPort:       v.GetInt("email_port"),
		EmailUsername:   v.GetString("email_username"),
		EmailPassword:   v.GetString("email_password"),
		EmailFrom:       v.GetString("email_from"),
		EmailRecipients: v.GetStringSlice("email_recipients"),

		OTelEndpoint: v.GetString("otel_endpoint"),
	}
}
