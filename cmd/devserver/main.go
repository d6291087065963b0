// Command devserver runs a development implementation of the ledger
// message store the client polls against.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"ledgerchat/internal/service/server"
	"ledgerchat/internal/utils/log"
)

var rootCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Development ledger message store",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := pickStore()
		s := server.NewHttpServer(store)
		if err := s.Run(viper.GetString("addr")); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", "localhost:9090", "listen address")
	flags.String("mongo-uri", "", "mongo connection string; empty keeps everything in memory")
	flags.String("mongo-db", "ledgerchat", "mongo database name")
	viper.BindPFlags(flags)
	viper.SetEnvPrefix("ledgerchat")
	viper.AutomaticEnv()
}

func pickStore() server.MessageStore {
	uri := viper.GetString("mongo-uri")
	if uri == "" {
		return server.NewMemoryStore()
	}

	client, err := initMongo(uri)
	if err != nil {
		log.Fatal("connect mongo", zap.Error(err))
	}
	return server.NewMongoStore(client.Database(viper.GetString("mongo-db")))
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
