package commands

import (
	"os"
	"path/filepath"
	"qthlookup/lib/configutil"
	"qthlookup/lib/credentials"
	"qthlookup/lib/hamqth"
	"qthlookup/lib/lookupcache"
	"qthlookup/lib/restyutil"
	"time"

	"github.com/spf13/cobra"
)

const defaultConfigName = "qthlookup.json5"

type CacheConfig struct {
	Disabled bool   `json:"disabled"`
	Path     string `json:"path"`
	TtlHours int    `json:"ttl_hours"`
}

type CloudlogConfig struct {
	BaseUrl          string `json:"base_url"`
	ApiKey           string `json:"api_key"`
	StationProfileId string `json:"station_profile_id"`
}

type Config struct {
	BaseUrl          string `json:"base_url"`
	AppLabel         string `json:"app_label"`
	MaxAttempts      int    `json:"max_attempts"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	StoreCredentials *bool  `json:"store_credentials"`
	CredentialsPath  string `json:"credentials_path"`
	// when set, raw http exchanges are written here while --verbose is on
	HttpDumpDir string `json:"http_dump_dir"`

	Cache    CacheConfig    `json:"cache"`
	Cloudlog CloudlogConfig `json:"cloudlog"`
}

func defaultConfig() Config {
	storeCredentials := true
	return Config{
		BaseUrl:          hamqth.DefaultBaseUrl,
		AppLabel:         "qthlookup",
		MaxAttempts:      hamqth.DefaultMaxAttempts,
		TimeoutSeconds:   int(hamqth.DefaultTimeout / time.Second),
		StoreCredentials: &storeCredentials,
		Cache: CacheConfig{
			TtlHours: int(lookupcache.DefaultTTL / time.Hour),
		},
	}
}

// loadConfig reads --config when it was given explicitly, otherwise the
// nearest qthlookup.json5 up from the cwd. no config file at all is fine.
func loadConfig(cmd *cobra.Command) (Config, error) {
	var cfg Config
	var err error
	if cmd.Flag("config").Changed {
		cfg, err = configutil.ReadConfig[Config](configPath)
	} else {
		cfg, err = configutil.ReadRecursively[Config](defaultConfigName)
		if os.IsNotExist(err) {
			err = nil
		}
	}
	if err != nil {
		return Config{}, err
	}

	cfg, err = configutil.WithDefaults(cfg, defaultConfig())
	if err != nil {
		return Config{}, err
	}
	if appLabel != "" {
		cfg.AppLabel = appLabel
	}
	return cfg, nil
}

// env holds everything a command needs to talk to hamqth.
type env struct {
	cfg    Config
	client *hamqth.Client
	cache  *lookupcache.Cache
	// nil unless http exchanges are being dumped
	httpOutput restyutil.InstrumentOutput
}

func (e *env) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

func openCache(cfg CacheConfig) (*lookupcache.Cache, error) {
	path := cfg.Path
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(dir, "qthlookup")
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "lookups.db")
	}
	return lookupcache.Open(path, time.Duration(cfg.TtlHours)*time.Hour)
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}

	credentialsPath := cfg.CredentialsPath
	if credentialsPath == "" {
		credentialsPath, err = credentials.DefaultPath(cfg.AppLabel)
		if err != nil {
			return nil, err
		}
	}
	store := credentials.NewStore(credentialsPath)

	opts := hamqth.ClientOptions{
		BaseUrl:            cfg.BaseUrl,
		AppLabel:           cfg.AppLabel,
		MaxAttempts:        cfg.MaxAttempts,
		Timeout:            time.Duration(cfg.TimeoutSeconds) * time.Second,
		Store:              &store,
		PersistCredentials: *cfg.StoreCredentials,
	}

	if verbose && cfg.HttpDumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(cfg.HttpDumpDir)
		if err != nil {
			return nil, err
		}
		e.httpOutput = out
		opts.HttpOutput = out
	}

	if !cfg.Cache.Disabled {
		e.cache, err = openCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		opts.Cache = e.cache
	}

	e.client, err = hamqth.NewClient(opts)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
