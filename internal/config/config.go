package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tailscale/hujson"
)

// Config holds everything the bridge daemon needs. Precedence: defaults in
// code, then the config file, then WALLETBRIDGE_* environment variables.
type Config struct {
	// Wallet origin and signer UI path. The wallet origin used for
	// transport authentication is computed from WalletBaseURL.
	WalletBaseURL string `json:"wallet_base_url" envconfig:"WALLET_BASE_URL"`
	SignerPath    string `json:"signer_path" envconfig:"SIGNER_PATH"`

	// Identity announced to the wallet on connect.
	AppName string `json:"app_name" envconfig:"APP_NAME"`
	AppIcon string `json:"app_icon" envconfig:"APP_ICON"`
	// LocalOrigin is stamped on outbound envelopes. Derived from ListenAddr
	// when empty.
	LocalOrigin string `json:"local_origin" envconfig:"LOCAL_ORIGIN"`

	// Popup geometry.
	PopupWidth   int `json:"popup_width" envconfig:"POPUP_WIDTH"`
	PopupHeight  int `json:"popup_height" envconfig:"POPUP_HEIGHT"`
	ScreenWidth  int `json:"screen_width" envconfig:"SCREEN_WIDTH"`
	ScreenHeight int `json:"screen_height" envconfig:"SCREEN_HEIGHT"`

	// Timers. The request timeout is generous on purpose: the wallet flow
	// may involve biometric prompts or first-time setup.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" envconfig:"REQUEST_TIMEOUT_SECONDS"`
	ReadyFallbackMillis   int `json:"ready_fallback_millis" envconfig:"READY_FALLBACK_MILLIS"`
	ClosePollMillis       int `json:"close_poll_millis" envconfig:"CLOSE_POLL_MILLIS"`
	JournalTTLSeconds     int `json:"journal_ttl_seconds" envconfig:"JOURNAL_TTL_SECONDS"`

	// Daemon surface.
	ListenAddr   string `json:"listen_addr" envconfig:"LISTEN_ADDR"`
	WalletWSPath string `json:"wallet_ws_path" envconfig:"WALLET_WS_PATH"`
	APIAuthToken string `json:"api_auth_token" envconfig:"API_AUTH_TOKEN"`

	// Optional settled-request journal backend; empty means in-memory.
	RedisAddr string `json:"redis_addr" envconfig:"REDIS_ADDR"`

	// Optional explicit browser binary for the popup launcher.
	BrowserBinary string `json:"browser_binary" envconfig:"BROWSER_BINARY"`
}

func Default() Config {
	return Config{
		WalletBaseURL:         "http://localhost:5173",
		SignerPath:            "/signer",
		AppName:               "Blendizzard",
		PopupWidth:            420,
		PopupHeight:           640,
		ScreenWidth:           1920,
		ScreenHeight:          1080,
		RequestTimeoutSeconds: 1200,
		ReadyFallbackMillis:   5000,
		ClosePollMillis:       500,
		JournalTTLSeconds:     3600,
		ListenAddr:            ":8920",
		WalletWSPath:          "/ws/wallet",
	}
}

// Load reads the optional HuJSON config file at path (comments and trailing
// commas allowed), then applies WALLETBRIDGE_* env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config failed: %w", err)
		}
		std, err := hujson.Standardize(content)
		if err != nil {
			return Config{}, fmt.Errorf("parse config failed: %w", err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config failed: %w", err)
		}
	}

	if err := envconfig.Process("WALLETBRIDGE", &cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides failed: %w", err)
	}

	if cfg.LocalOrigin == "" {
		cfg.LocalOrigin = "http://localhost" + cfg.ListenAddr
	}
	if _, err := cfg.WalletOrigin(); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("request_timeout_seconds must be positive")
	}
	return cfg, nil
}

// WalletOrigin derives the scheme://host origin used to authenticate the
// wallet transport.
func (c Config) WalletOrigin() (string, error) {
	u, err := url.Parse(c.WalletBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid wallet_base_url %q", c.WalletBaseURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) ReadyFallback() time.Duration {
	return time.Duration(c.ReadyFallbackMillis) * time.Millisecond
}

func (c Config) ClosePollInterval() time.Duration {
	return time.Duration(c.ClosePollMillis) * time.Millisecond
}

func (c Config) JournalTTL() time.Duration {
	return time.Duration(c.JournalTTLSeconds) * time.Second
}
