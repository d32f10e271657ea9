package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")         // name of config file (without extension)
	viper.SetConfigType("yaml")           // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("/etc/recondor/") // path to look for the config file in
	viper.AddConfigPath(".")              // optionally look for config in the working directory
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			log.Warn().Msg("Config file not found")
		} else {
			// Config file was found but another error was produced
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

func SetDefaultConfig() {
	// Storage
	viper.SetDefault("database", "recondor.db")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "recondor.log")

	// Outbound request throttling, requests per second. <= 0 disables.
	viper.SetDefault("rate_limit", 10.0)

	// Proxy routing. The Tor SOCKS proxy takes precedence when enabled.
	viper.SetDefault("proxy.http", "")
	viper.SetDefault("proxy.https", "")
	viper.SetDefault("proxy.use_tor", false)
	viper.SetDefault("proxy.tor_address", "socks5://127.0.0.1:9050")

	// Modules
	viper.SetDefault("modules.enabled.subdomain", []string{"crtsh", "alienvault", "anubis"})
	viper.SetDefault("modules.enabled.portscan", []string{"scanner"})
	viper.SetDefault("modules.enabled.shodan", []string{})
	viper.SetDefault("modules.enabled.http", []string{"prober"})
	viper.SetDefault("modules.enabled.screenshot", []string{"capturer"})
	viper.SetDefault("modules.enabled.github", []string{})
	viper.SetDefault("modules.enabled.cloud_buckets", []string{})

	viper.SetDefault("modules.subdomain.timeout", 30)

	viper.SetDefault("modules.portscan.ports", []int{
		21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143,
		443, 445, 993, 995, 1723, 3306, 3389, 5900, 8080, 8443,
	})
	viper.SetDefault("modules.portscan.timeout", 2)
	viper.SetDefault("modules.portscan.concurrency", 100)
	viper.SetDefault("modules.portscan.cdn_ports", []int{80, 443})

	viper.SetDefault("modules.http.probing_limit", 100)
	viper.SetDefault("modules.http.concurrency", 20)
	viper.SetDefault("modules.http.timeout", 5)
	viper.SetDefault("modules.http.connect_timeout", 3)
	viper.SetDefault("modules.http.probe_http3", false)
	viper.SetDefault("modules.http.fingerprint", true)

	viper.SetDefault("modules.screenshot.concurrency", 5)
	viper.SetDefault("modules.screenshot.timeout", 15)
	viper.SetDefault("modules.screenshot.headless", true)

	viper.SetDefault("modules.shodan.timeout", 10)

	viper.SetDefault("modules.github.dorks", []string{
		`"{domain}"`,
		`"{domain}" api_key`,
		`"{domain}" secret`,
	})
	viper.SetDefault("modules.github.timeout", 10)

	viper.SetDefault("modules.cloud_buckets.wordlist", []string{
		"{domain}",
		"{domain}-backup",
		"{domain}-assets",
		"backup-{domain}",
	})
	viper.SetDefault("modules.cloud_buckets.timeout", 5)

	// API keys shared with every module
	viper.SetDefault("api_keys.shodan", "")
	viper.SetDefault("api_keys.github", "")
	viper.SetDefault("api_keys.virustotal", "")
	viper.SetDefault("api_keys.securitytrails", "")

	// API
	viper.SetDefault("api.listen.host", "")
	viper.SetDefault("api.listen.port", 8013)
	viper.SetDefault("api.cors.origins", []string{"*"})
	viper.SetDefault("api.metrics.enabled", false)
	viper.SetDefault("api.metrics.path", "/metrics")
	viper.SetDefault("api.metrics.title", "Recondor Metrics")

	// Reports
	viper.SetDefault("reports.screenshots_dir", "reports/screenshots")
}
