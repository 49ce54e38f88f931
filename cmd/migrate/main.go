// Command migrate inspects legacy single-tenant configuration and
// converts it into a multi-domain registry document.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/migration"
	"github.com/leozw/leadboard/internal/registry"
)

func main() {
	var (
		detect   = flag.Bool("detect", false, "report detected legacy configuration and exit")
		migrate  = flag.Bool("migrate", false, "write the migrated configuration into the registry file")
		validate = flag.Bool("validate", false, "validate the registry file and exit")
		path     = flag.String("file", "domains.json", "path to the registry file")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch {
	case *detect:
		runDetect()
	case *migrate:
		runMigrate(*path, logger)
	case *validate:
		runValidate(*path, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runDetect() {
	legacy := migration.Detect()
	if legacy == nil {
		fmt.Println("no legacy configuration found")
		return
	}

	migrated := migration.Migrate(*legacy)
	out, _ := json.MarshalIndent(map[string]interface{}{
		"source":   legacy.Source,
		"domain":   migrated.Domain,
		"migrated": migrated,
	}, "", "  ")
	fmt.Println(string(out))
}

func runMigrate(path string, logger *zap.Logger) {
	legacy := migration.Detect()
	if legacy == nil {
		fmt.Fprintln(os.Stderr, "no legacy configuration found, nothing to migrate")
		os.Exit(1)
	}

	if err := migration.WriteDocument(path, *legacy); err != nil {
		fmt.Fprintln(os.Stderr, "migration failed:", err)
		os.Exit(1)
	}

	// Reload to prove the written document passes validation.
	if _, err := registry.New(path, logger); err != nil {
		fmt.Fprintln(os.Stderr, "migrated registry failed validation:", err)
		os.Exit(1)
	}

	fmt.Printf("migrated legacy configuration (%s) into %s\n", legacy.Source, path)
}

func runValidate(path string, logger *zap.Logger) {
	reg, err := registry.New(path, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid:", err)
		os.Exit(1)
	}

	snap := reg.Snapshot()
	fmt.Printf("valid: %d domains (%d enabled)\n", len(snap.All()), len(snap.Domains()))
}
