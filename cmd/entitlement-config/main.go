package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/entitlement"
	"github.com/oarkflow/entitlement/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("entitlement-config - Configuration tool for entitlement")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  entitlement-config convert <input> <output>  - Convert between formats")
	fmt.Println("  entitlement-config validate <file>           - Validate configuration")
	fmt.Println("  entitlement-config stats <file>              - Show configuration statistics")
	fmt.Println("  entitlement-config apply <file>              - Apply configuration to engine")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: entitlement-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: entitlement-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	stats := cfg.Stats()
	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Subjects: %d\n", stats.Subjects)
	fmt.Printf("  Roles: %d\n", stats.Roles)
	fmt.Printf("  Rules: %d\n", stats.Rules)
	fmt.Printf("  Licenses: %d\n", stats.Licenses)
	fmt.Printf("  Memberships: %d\n", stats.Memberships)
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: entitlement-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	stats := cfg.Stats()
	fmt.Println("Components:")
	fmt.Printf("  Subjects:    %d\n", stats.Subjects)
	fmt.Printf("  Roles:       %d\n", stats.Roles)
	fmt.Printf("  Rules:       %d\n", stats.Rules)
	fmt.Printf("  Licenses:    %d\n", stats.Licenses)
	fmt.Printf("  Memberships: %d\n", stats.Memberships)
	fmt.Println()

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		for _, r := range cfg.Roles {
			totalPerms += len(r.Permissions)
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permissions: %d\n", totalPerms)
		fmt.Printf("  Avg per role:      %.1f\n", float64(totalPerms)/float64(len(cfg.Roles)))
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Privileged roles:      %v\n", cfg.Engine.PrivilegedRoles)
	fmt.Printf("  Required permission:   %s\n", cfg.Engine.RequiredPermission)
	fmt.Printf("  License validity days: %d\n", cfg.Engine.LicenseValidityDays)
	fmt.Printf("  Ristretto counters:    %d\n", cfg.Engine.RistrettoNumCounters)
	fmt.Printf("  Ristretto max cost:    %d\n", cfg.Engine.RistrettoMaxCost)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: entitlement-config apply <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	engine, err := entitlement.NewEngine(
		stores.NewMemoryIdentityStore(),
		stores.NewMemoryLicenseStore(),
		stores.NewMemoryRuleStore(),
		entitlement.WithRoleMembershipStore(stores.NewMemoryRoleMembershipStore()),
	)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	stats := cfg.Stats()
	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Subjects loaded: %d\n", stats.Subjects)
	fmt.Printf("  Roles loaded: %d\n", stats.Roles)
	fmt.Printf("  Licenses loaded: %d\n", stats.Licenses)
}

func loadConfig(filename string) (*entitlement.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := entitlement.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *entitlement.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
