// Command client runs the terminal chat client against a ledger
// message store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ledgerchat/internal/broadcast"
	"ledgerchat/internal/cryptographic/envelope"
	"ledgerchat/internal/cryptographic/keyring"
	"ledgerchat/internal/identity"
	"ledgerchat/internal/remote"
	"ledgerchat/internal/repository/cache"
	"ledgerchat/internal/service/app"
	syncctl "ledgerchat/internal/service/sync"
	"ledgerchat/internal/utils/log"
)

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Terminal chat client with end-to-end encrypted messages",
	Args:  cobra.NoArgs,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		runClient()
	}
	flags := rootCmd.PersistentFlags()
	flags.String("server", "localhost:9090", "message store host:port")
	flags.String("scope", "general", "conversation scope")
	flags.String("group", "", "group id; messages are sealed under the group key")
	flags.String("redis", "", "redis address for cross-instance coordination")
	flags.String("data-dir", "", "local data directory (default: OS config dir)")
	flags.Duration("poll-interval", syncctl.DefaultPollInterval, "background poll interval")
	flags.Int("page-size", syncctl.DefaultPageSize, "messages per page")
	flags.Bool("encrypt", true, "encrypt outgoing messages")
	viper.BindPFlags(flags)
	viper.SetEnvPrefix("ledgerchat")
	viper.AutomaticEnv()

	rootCmd.AddCommand(keyCmd())
}

func resolveDataDir() string {
	if dir := viper.GetString("data-dir"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "ledgerchat")
}

func openStore() *cache.Store {
	store, err := cache.Open(resolveDataDir())
	if err != nil {
		log.Fatal("open local cache", zap.Error(err))
	}
	return store
}

// initLogger sends logs to a file so they do not fight the TUI.
func initLogger(dataDir string) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dataDir, "client.log")}
	if logger, err := cfg.Build(); err == nil {
		log.Init(logger)
	}
}

func runClient() {
	dataDir := resolveDataDir()
	store := openStore()
	defer store.Close()
	initLogger(dataDir)

	server := viper.GetString("server")
	scope := viper.GetString("scope")

	if rootCmd.PersistentFlags().Changed("encrypt") {
		if err := store.SetEncryptionOptIn(viper.GetBool("encrypt")); err != nil {
			log.Warn("persist encryption preference", zap.Error(err))
		}
	}
	encrypt, err := store.EncryptionOptIn()
	if err != nil {
		log.Warn("read encryption preference", zap.Error(err))
		encrypt = true
	}

	keys := keyring.New(store)
	codec := envelope.NewCodec(keys, encrypt)
	ids := identity.NewService(server, store)
	client := remote.NewClient(server, 10*time.Second)

	ctrl := syncctl.NewController(
		syncctl.Config{
			Scope:        scope,
			GroupID:      viper.GetString("group"),
			PageSize:     viper.GetInt("page-size"),
			PollInterval: viper.GetDuration("poll-interval"),
		},
		client, store, codec, ids, openPort(server, scope),
	)

	ui := app.NewApp(ctrl, ids, scope)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		ui.Stop()
	}()

	ui.Run(context.Background())
}

// openPort picks the best available coordination primitive: redis when
// configured, the store's websocket hub otherwise, and silently no-op
// when neither is reachable.
func openPort(server, scope string) broadcast.Port {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if addr := viper.GetString("redis"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if port, err := broadcast.NewRedisPort(ctx, rdb, scope); err == nil {
			return port
		} else {
			log.Warn("redis coordination unavailable", zap.Error(err))
		}
	}
	if port, err := broadcast.DialWS(server, scope); err == nil {
		return port
	} else {
		log.Debug("websocket coordination unavailable", zap.Error(err))
	}
	return broadcast.Noop{}
}
