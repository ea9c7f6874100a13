// migrate aplica las migraciones SQL de migrations/postgres en orden.
//
// Uso: migrate [-config path] [up|down] [steps]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/konfera/internal/config"
	migrations "github.com/dropDatabas3/konfera/migrations/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	flag.Parse()

	_ = godotenv.Load()

	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.Storage.DSN == "" {
		log.Fatal("DATABASE_URL / storage.dsn is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		run(ctx, pool, "_up.sql", steps, false)
	case "down":
		run(ctx, pool, "_down.sql", steps, true)
	default:
		log.Fatalf("unknown action %q. Use: up | down [steps]", action)
	}
}

func run(ctx context.Context, pool *pgxpool.Pool, suffix string, steps int, reverse bool) {
	files, err := listSQL(suffix)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	if len(files) == 0 {
		log.Printf("No *%s migrations found. Nothing to do.", suffix)
		return
	}
	sort.Strings(files)
	if reverse {
		reverseInPlace(files)
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	log.Printf("Applying %d migration(s)...", len(files))
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
	}
	log.Println("Migrations completed.")
}

func listSQL(suffix string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix)) {
			out = append(out, name)
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, name string) error {
	b, err := migrations.FS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	log.Printf("OK %s (%s)", filepath.Base(name), time.Since(start).Truncate(time.Millisecond))
	return nil
}
