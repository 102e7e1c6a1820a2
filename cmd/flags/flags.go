package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/watchstate/common"
	"github.com/ruteri/watchstate/httpserver"
	"github.com/ruteri/watchstate/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
		Output:  cCtx.App.ErrWriter,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// StorageConfig builds the storage configuration. Defaults are overlaid by
// the --config file, which is overlaid by flags and environment variables.
func StorageConfig(cCtx *cli.Context) (storage.Config, error) {
	cfg := storage.DefaultConfig()

	if path := cCtx.String(ConfigFileFlag.Name); path != "" {
		if err := storage.LoadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	setString := func(flag *cli.StringFlag, dest *string) {
		if cCtx.IsSet(flag.Name) {
			*dest = cCtx.String(flag.Name)
		}
	}

	setString(StorageTypeFlag, &cfg.Type)
	setString(KeyPrefixFlag, &cfg.KeyPrefix)
	setString(RedisURLFlag, &cfg.RedisURL)
	setString(KvrocksURLFlag, &cfg.KvrocksURL)
	setString(UpstashURLFlag, &cfg.UpstashURL)
	setString(UpstashTokenFlag, &cfg.UpstashToken)
	setString(ConsulAddrFlag, &cfg.ConsulAddr)
	setString(ConsulTokenFlag, &cfg.ConsulToken)
	setString(ConsulPathFlag, &cfg.ConsulPath)
	setString(VaultAddrFlag, &cfg.VaultAddr)
	setString(VaultTokenFlag, &cfg.VaultToken)
	setString(VaultMountFlag, &cfg.VaultMount)
	setString(VaultPathFlag, &cfg.VaultPath)
	setString(S3URIFlag, &cfg.S3URI)
	setString(IPFSURIFlag, &cfg.IPFSURI)
	setString(FilePathFlag, &cfg.FilePath)
	setString(BoltPathFlag, &cfg.BoltPath)

	if cCtx.IsSet(ConnectTimeoutFlag.Name) {
		cfg.ConnectTimeout = cCtx.Duration(ConnectTimeoutFlag.Name)
	}
	return cfg, nil
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"WATCHSTATE_CONFIG"},
	Usage:   "TOML file with a [storage] table",
}

var StorageTypeFlag = &cli.StringFlag{
	Name:    "storage-type",
	EnvVars: []string{"STORAGE_TYPE", "NEXT_PUBLIC_STORAGE_TYPE"},
	Usage:   "backend family: none, redis, kvrocks, upstash, consul, vault, s3, ipfs, file, bolt or memory",
}
var KeyPrefixFlag = &cli.StringFlag{
	Name:    "key-prefix",
	EnvVars: []string{"KEY_PREFIX"},
	Usage:   "namespace prepended to every storage key",
}
var ConnectTimeoutFlag = &cli.DurationFlag{
	Name:    "connect-timeout",
	EnvVars: []string{"CONNECT_TIMEOUT"},
	Usage:   "time allowed for the backend availability check",
}

var RedisURLFlag = &cli.StringFlag{
	Name:    "redis-url",
	EnvVars: []string{"REDIS_URL"},
	Usage:   "redis:// URL for the redis backend",
}
var KvrocksURLFlag = &cli.StringFlag{
	Name:    "kvrocks-url",
	EnvVars: []string{"KVROCKS_URL"},
	Usage:   "redis:// URL for the kvrocks backend",
}
var UpstashURLFlag = &cli.StringFlag{
	Name:    "upstash-url",
	EnvVars: []string{"UPSTASH_URL"},
	Usage:   "Upstash REST endpoint",
}
var UpstashTokenFlag = &cli.StringFlag{
	Name:    "upstash-token",
	EnvVars: []string{"UPSTASH_TOKEN"},
	Usage:   "Upstash REST bearer token",
}
var ConsulAddrFlag = &cli.StringFlag{
	Name:    "consul-addr",
	EnvVars: []string{"CONSUL_ADDR"},
	Usage:   "Consul agent address",
}
var ConsulTokenFlag = &cli.StringFlag{
	Name:    "consul-token",
	EnvVars: []string{"CONSUL_TOKEN"},
	Usage:   "Consul ACL token",
}
var ConsulPathFlag = &cli.StringFlag{
	Name:    "consul-path",
	EnvVars: []string{"CONSUL_PATH"},
	Usage:   "KV path under which keys are stored",
}
var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	EnvVars: []string{"VAULT_ADDR"},
	Usage:   "Vault server address",
}
var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	EnvVars: []string{"VAULT_TOKEN"},
	Usage:   "Vault token",
}
var VaultMountFlag = &cli.StringFlag{
	Name:    "vault-mount",
	EnvVars: []string{"VAULT_MOUNT"},
	Usage:   "KV v2 mount path",
}
var VaultPathFlag = &cli.StringFlag{
	Name:    "vault-path",
	EnvVars: []string{"VAULT_PATH"},
	Usage:   "path within the mount",
}
var S3URIFlag = &cli.StringFlag{
	Name:    "s3-uri",
	EnvVars: []string{"S3_URI"},
	Usage:   "s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=&endpoint=",
}
var IPFSURIFlag = &cli.StringFlag{
	Name:    "ipfs-uri",
	EnvVars: []string{"IPFS_URI"},
	Usage:   "ipfs://host:port/base/dir?timeout=30s",
}
var FilePathFlag = &cli.StringFlag{
	Name:    "file-path",
	EnvVars: []string{"FILE_PATH"},
	Usage:   "directory for the file backend",
}
var BoltPathFlag = &cli.StringFlag{
	Name:    "bolt-path",
	EnvVars: []string{"BOLT_PATH"},
	Usage:   "database file for the bolt backend",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
}

var StorageFlags = []cli.Flag{
	ConfigFileFlag,
	StorageTypeFlag,
	KeyPrefixFlag,
	ConnectTimeoutFlag,
	RedisURLFlag,
	KvrocksURLFlag,
	UpstashURLFlag,
	UpstashTokenFlag,
	ConsulAddrFlag,
	ConsulTokenFlag,
	ConsulPathFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultMountFlag,
	VaultPathFlag,
	S3URIFlag,
	IPFSURIFlag,
	FilePathFlag,
	BoltPathFlag,
}
