package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/schemacache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the durable schema cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the entire schema cache file's contents",
	RunE:  runCacheClear,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Delete this connection's schema cache entry",
	RunE:  runCacheInvalidate,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a cache entry exists for this connection (its age is not shown)",
	RunE:  runCacheStatus,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheInvalidateCmd, cacheStatusCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadInspectionConfig()
	if err != nil {
		return err
	}
	cache := schemacache.Open(cfg.Cache.Path)
	if err := cache.Clear(); err != nil {
		return &OutputError{Err: err}
	}
	fmt.Fprintln(outputWriter, "schema cache cleared")
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadInspectionConfig()
	if err != nil {
		return err
	}
	cache := schemacache.Open(cfg.Cache.Path)
	if err := cache.Invalidate(cfg.Connection.Host, cfg.Connection.Database); err != nil {
		return &OutputError{Err: err}
	}
	fmt.Fprintf(outputWriter, "schema cache entry for %s/%s invalidated\n", cfg.Connection.Host, cfg.Connection.Database)
	return nil
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadInspectionConfig()
	if err != nil {
		return err
	}
	cache := schemacache.Open(cfg.Cache.Path)
	_, ok, err := cache.Load(cfg.Connection.Host, cfg.Connection.Database, 365*24*time.Hour)
	if err != nil {
		return &OutputError{Err: err}
	}
	if !ok {
		fmt.Fprintf(outputWriter, "no cache entry for %s/%s\n", cfg.Connection.Host, cfg.Connection.Database)
		return nil
	}
	fmt.Fprintf(outputWriter, "cache entry present for %s/%s\n", cfg.Connection.Host, cfg.Connection.Database)
	return nil
}
