package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"focusforest/internal/app"
	"focusforest/internal/config"

	"github.com/sevlyar/go-daemon"
)

var (
	configPath = flag.String("c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/focusforest/config.yaml, /etc/focusforest/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	daemonize  = flag.Bool("d", false, "Detach and run in the background (writes focusforest.pid next to the log)")
)

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		log.Println("Logging to stderr")
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	log.SetOutput(file)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

// detach re-executes the binary in the background. parent is true in the
// original process, which should exit; the child gets the context to release.
func detach(logFilePath string) (*daemon.Context, bool, error) {
	pidDir := os.TempDir()
	if logFilePath != "" {
		pidDir = filepath.Dir(logFilePath)
	}
	cntxt := &daemon.Context{
		PidFileName: filepath.Join(pidDir, "focusforest.pid"),
		PidFilePerm: 0644,
		WorkDir:     ".",
		Umask:       027,
		Args:        os.Args,
	}
	child, err := cntxt.Reborn()
	if err != nil {
		return nil, false, fmt.Errorf("failed to daemonize: %w", err)
	}
	if child != nil {
		// Parent: the child carries on.
		return nil, true, nil
	}
	return cntxt, false, nil
}

func main() {
	flag.Parse()

	if *daemonize {
		if *logPath == "" {
			log.Fatal("FATAL: -d requires -log, a detached daemon has no stderr")
		}
		cntxt, parent, err := detach(*logPath)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		if parent {
			fmt.Println("Focus Forest daemon started in the background")
			return
		}
		defer cntxt.Release()
	}

	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// viper checks env vars and config files (./, ~/.config/focusforest/, /etc/focusforest/)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to create application: %v", err)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := application.Run(); err != nil {
		log.Fatalf("FATAL: Application exited with error: %v", err)
	}

	log.Println("Focus Forest finished successfully.")
}
