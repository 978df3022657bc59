// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tripmate/services/supervisor"
	"github.com/AleutianAI/tripmate/services/supervisor/server"
)

var version = "0.1.0"

var (
	configPath string
	portFlag   int

	rootCmd = &cobra.Command{
		Use:   "tripmate",
		Short: "A multi-agent trip planning supervisor",
		Long: `Tripmate runs a supervisor that plans trips by delegating to
specialist agents for slot extraction, flight and hotel search,
budget bundles, and booking.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the supervisor HTTP service",
		Run:   runServe,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the supervisor from the terminal",
		Long:  `Runs the executor in-process and reads one message per line from stdin.`,
		Run:   runChat,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tripmate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tripmate", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "HTTP listen port (overrides config)")
	rootCmd.AddCommand(serveCmd, chatCmd, versionCmd)
}

// loadConfig layers file config under environment overrides.
func loadConfig() supervisor.Config {
	cfg, err := supervisor.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	cfg.Port = getEnvInt("SUPERVISOR_PORT", cfg.Port)
	cfg.StepLimit = getEnvInt("SUPERVISOR_STEP_LIMIT", cfg.StepLimit)
	cfg.PolicyBackend = getEnvString("SUPERVISOR_POLICY_BACKEND", cfg.PolicyBackend)
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)

	if portFlag != 0 {
		cfg.Port = portFlag
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	svc, err := server.New(cfg, &server.Options{
		ConfigPath: configPath,
		GinMode:    os.Getenv("GIN_MODE"),
	})
	if err != nil {
		log.Fatalf("failed to initialize supervisor service: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runChat(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	cfg.OTelEndpoint = ""

	svc, err := server.New(cfg, &server.Options{GinMode: "release"})
	if err != nil {
		log.Fatalf("failed to initialize supervisor: %v", err)
	}
	exec := svc.Executor()
	sess := exec.StartSession()
	fmt.Printf("Session %s. Type a message, or 'quit' to exit.\n", sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "approve" {
			if err := exec.Approve(sess.ID); err != nil {
				fmt.Println("approve failed:", err)
			} else {
				fmt.Println("approved")
			}
			continue
		}

		result, err := exec.SubmitTurn(cmd.Context(), sess.ID, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(result.Reply)
	}
	_ = exec.EndSession(sess.ID)
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
