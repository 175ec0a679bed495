package main

import (
	"fmt"
	"os"

	"github.com/bind-labs/backend/internal/application/worker"
	"github.com/bind-labs/backend/internal/lease"
	"github.com/bind-labs/backend/internal/logger/zaplogger"
	"github.com/bind-labs/backend/internal/messaging"
	"github.com/bind-labs/backend/internal/messaging/nsqclient/consumer"
	"github.com/bind-labs/backend/internal/messaging/nsqclient/producer"
	"github.com/bind-labs/backend/internal/refresher"
	"github.com/bind-labs/backend/internal/repository/postgresql"
	"github.com/bind-labs/backend/internal/tracing"
	"github.com/bind-labs/backend/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	var (
		cfgFile string
	)
	// rootCmd represents the base command when called without any subcommands
	rootCmd := &cobra.Command{
		Use:   "feeds-refresher",
		Short: "Feeds refresher daemon",
		Long:  `Background daemon that periodically refreshes due syndicated feeds on a single leader replica`,
		Run: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				// Use config file from the flag.
				viper.SetConfigFile(cfgFile)
			} else {
				viper.AddConfigPath(".")      // optionally look for config in the working directory
				viper.SetConfigName("config") // name of config file (without extension)
			}
			// If the config file is found, read it in.
			if err := viper.ReadInConfig(); err != nil {
				fmt.Printf("FATAL: error in config file %s. %s", viper.ConfigFileUsed(), err)
				os.Exit(1)
			}
			fmt.Println("Using config file:", viper.ConfigFileUsed())
			// Init logging
			logCfg := &zaplogger.Config{}
			if err := viper.UnmarshalKey("logging", logCfg); err != nil {
				fmt.Println("Failure reading 'logging' configuration:", err)
				os.Exit(1)
			}
			logger := zaplogger.New(logCfg).Sugar()
			defer logger.Sync()

			// Init tracing
			tracingCfg := tracing.Config{}
			if err := viper.UnmarshalKey("tracing", &tracingCfg); err != nil {
				fmt.Println("Failure reading 'tracing' configuration:", err)
				os.Exit(1)
			}
			tracer, tracerCloser := tracing.New(tracingCfg, logger)
			defer tracerCloser.Close()

			// Create db configuration
			databaseViperConfig := viper.Sub("database")
			dbCfg := &postgresql.Config{}
			if err := databaseViperConfig.UnmarshalExact(dbCfg); err != nil {
				fmt.Println("FATAL: failure reading 'database' configuration: ", err)
				os.Exit(1)
			}
			// Open db
			db, err := postgresql.New(dbCfg, postgresql.NewZapLogger(logger.Desugar()), tracer)
			if err != nil {
				fmt.Println("FATAL: failure creating database connection, ", err)
				os.Exit(1)
			}

			// Create NSQ producer, used to fan out refresh-all requests
			publishViperConfig := viper.Sub("publish")
			publishCfg := &producer.MessageProducerConfig{}
			if err := publishViperConfig.UnmarshalExact(&publishCfg); err != nil {
				fmt.Println("FATAL: failure reading NSQ 'publish' configuration, ", err)
				os.Exit(1)
			}
			messageProducer, err := producer.New(publishCfg)
			if err != nil {
				fmt.Println("FATAL: failure initialising NSQ producer, ", err)
				os.Exit(1)
			}
			feedsRefreshProducer := messaging.NewFeedsRefreshProducer(messageProducer, tracer)

			// Refresh engine configuration
			refreshViperConfig := viper.Sub("refresh")
			refreshCfg := refresher.Config{}
			if err := refreshViperConfig.UnmarshalExact(&refreshCfg); err != nil {
				fmt.Println("FATAL: failure reading 'refresh' configuration, ", err)
				os.Exit(1)
			}
			// Leader lease is optional, without it every tick proceeds
			var leaseHandle lease.Lease
			if refreshCfg.LeaseName != "" {
				kubeClient, err := lease.NewKubernetesClient()
				if err != nil {
					fmt.Println("FATAL: failure creating Kubernetes client for lease, ", err)
					os.Exit(1)
				}
				leaseHandle = lease.NewKubernetesLease(kubeClient, refreshCfg.LeaseNamespace, refreshCfg.LeaseName)
			}
			metrics := refresher.NewMetrics()
			feedsRefresher := refresher.New(refreshCfg, db, leaseHandle, logger, tracer, metrics)
			startMetricsServer(refreshCfg.MetricsAddress, db, logger)

			// Construct consumer with message handler for manual refresh triggers
			consumeViperConfig := viper.Sub("consume")
			consumeCfg := &consumer.MessageConsumerConfig{}
			if err := consumeViperConfig.UnmarshalExact(&consumeCfg); err != nil {
				fmt.Println("FATAL: failure reading 'consume' configuration, ", err)
				os.Exit(1)
			}
			feedsRefreshProcessor := messaging.NewFeedsRefreshProcessor(db, feedsRefresher, feedsRefreshProducer, logger, tracer)
			messageConsumer, err := consumer.New(consumeCfg, feedsRefreshProcessor, logger)
			if err != nil {
				fmt.Println("FATAL: consumer creation failed, ", err)
				os.Exit(1)
			}
			wrkr := worker.New(messageConsumer, feedsRefresher, logger)
			wrkr.Start()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of application",
		Long:  `Software version`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Bind Feeds refresher version:", version.Version, "build on:", version.BuildTime)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
