//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/trendyard/internal/config"
)

// mysqlConfig reads connection settings for a disposable MySQL server from
// TRENDYARD_TEST_MYSQL_HOST / _PORT. The test is skipped when unset.
func mysqlConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("TRENDYARD_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("TRENDYARD_TEST_MYSQL_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TRENDYARD_TEST_MYSQL_PORT"))
	if port == 0 {
		port = 3306
	}
	return config.DatabaseConfig{
		Driver:   "mysql",
		Host:     host,
		Port:     port,
		User:     "root",
		Password: os.Getenv("TRENDYARD_TEST_MYSQL_PASSWORD"),
		Database: "trendyard_test",
	}
}

func TestIntegration_MySQLMigrate(t *testing.T) {
	cfg := mysqlConfig(t)
	gdb, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}
