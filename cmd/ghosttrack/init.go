package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ghosttrack/ghosttrack/internal/auth"
	"github.com/ghosttrack/ghosttrack/internal/config"
	"github.com/ghosttrack/ghosttrack/internal/database"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize GhostTrack with an interactive setup wizard",
	Long: `Runs an interactive setup wizard to configure GhostTrack.

This will:
  1. Create the data directory and initialize the event database
  2. Generate a secure secret key
  3. Set the dashboard admin password
  4. Write the config file`,
	Run: runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("===========================================")
	fmt.Println("  GhostTrack Setup Wizard")
	fmt.Println("===========================================")
	fmt.Println()

	cfg := config.Load(configPath)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	// Check if data directory exists
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		fmt.Printf("Creating data directory: %s\n", cfg.DataDir)
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Check if database already exists
	dbPath := cfg.DataDir + "/ghosttrack.db"
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database already exists.")
		fmt.Print("Continue? This updates settings but won't touch existing events. [y/N]: ")
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	// Initialize database
	fmt.Println("\nInitializing database...")
	db, err := database.New(dbPath, cfg.StoreTimeout())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	fmt.Println("Database migrations complete.")

	// Generate secret key
	cfg.SecretKey = generateSecretKey()
	fmt.Println("Generated secure secret key.")

	// Set admin password
	fmt.Println("\n--- Admin Password ---")
	fmt.Print("Admin password (min 8 characters): ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	password := string(passwordBytes)
	if len(password) < 8 {
		log.Fatal("Password must be at least 8 characters")
	}

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if password != string(confirmBytes) {
		log.Fatal("Passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	cfg.AdminPasswordHash = hash

	// Write config
	if err := cfg.Save(configPath); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}

	fmt.Println("\nSetup complete! Run 'ghosttrack serve' to start the server.")
}

func generateSecretKey() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
