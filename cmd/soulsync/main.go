package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "soulsync",
		Short: "SoulSync - peer-to-peer music downloads with catalog-grade metadata",
		Long: `soulsync turns a running slskd daemon into a library builder.
It searches peers for tracks, reconciles download state against the daemon,
resolves each completed file to a canonical catalog identity, and organizes
it into a clean artist/album layout with rewritten tags.`,
		Version: Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/soulsync.yaml)")
	rootCmd.PersistentFlags().String("db", "soulsync.db", "state database file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().String("slskd-url", "http://localhost:5030", "slskd daemon base URL")
	rootCmd.PersistentFlags().String("slskd-api-key", "", "slskd API key")

	// Bind flags to viper
	viper.BindPFlag(util.KeyDatabasePath, rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag(util.KeySlskdURL, rootCmd.PersistentFlags().Lookup("slskd-url"))
	viper.BindPFlag(util.KeySlskdAPIKey, rootCmd.PersistentFlags().Lookup("slskd-api-key"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("soulsync")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SOULSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
