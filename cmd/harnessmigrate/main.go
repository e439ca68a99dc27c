// Package main provides the database migration CLI for the mentionflow
// harness: up/down/status/version/drop commands over the schema the Queue
// Store and operator keystore run on, validating the on-disk migration
// file set before ever touching the database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

const (
	version = "0.1.0-dev"
	name    = "harnessmigrate"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "show help information")
		showVersion = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	if *showHelp || len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	command := os.Args[1]

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	runner, err := NewMigrationRunner(cfg)
	if err != nil {
		log.Fatalf("failed to create migration runner: %v", err)
	}
	defer runner.Close()

	if err := executeCommand(command, runner); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}

func executeCommand(command string, runner MigrationRunner) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		fmt.Print("WARNING: this will drop all tables. Are you sure? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if response == "y" || response == "Y" {
			return runner.Drop()
		}
		fmt.Println("operation cancelled")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Printf(`%s v%s - database migration tool for the mentionflow harness

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Rollback the last migration
    status  Show migration status
    version Show current migration version
    drop    Drop all tables (requires confirmation)

OPTIONS:
    --help     Show this help message
    --version  Show version information

ENVIRONMENT VARIABLES:
    MENTIONFLOW_DATABASE_URL      PostgreSQL connection string (REQUIRED)
    MENTIONFLOW_MIGRATIONS_PATH   Path to migration files directory
                                  (default: ./migrations)
    MENTIONFLOW_MIGRATION_TABLE   Name of migration tracking table
                                  (default: schema_migrations)

EXAMPLES:
    %s up
    %s status
    %s down
    %s --version
`, name, version, name, name, name, name, name)
}
