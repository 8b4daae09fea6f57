// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/config"
	"github.com/unclebandit/phishguard-backend/internal/db"
	"github.com/unclebandit/phishguard-backend/internal/logger"
	"github.com/unclebandit/phishguard-backend/internal/repository"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

// seededAdmin is the admin user created by seed/organizations.sql.
var seededAdmin = uuid.MustParse("5f1d9d0a-1111-4a1a-9a01-000000000001")

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory of schema migrations")
	seedDir := flag.String("seed", "seed", "directory of seed data")
	skipSeed := flag.Bool("schema-only", false, "apply migrations without seed data")
	adminPassword := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "password for the seeded admin; empty leaves login disabled")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Log)
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	dirs := []string{*migrationsDir}
	if !*skipSeed {
		dirs = append(dirs, *seedDir)
	}
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to list sql files")
		}
		sort.Strings(files)

		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				log.Fatal().Err(err).Str("file", file).Msg("failed to read")
			}
			if _, err := conn.ExecContext(ctx, string(content)); err != nil {
				log.Fatal().Err(err).Str("file", file).Msg("failed to execute")
			}
			log.Info().Str("file", file).Msg("✅ applied")
		}
	}

	if *skipSeed {
		return
	}

	users := &repository.UserRepository{DB: conn}
	admin, err := users.GetByID(ctx, seededAdmin)
	if err != nil {
		log.Fatal().Err(err).Msg("seeded admin not found")
	}
	if *adminPassword != "" {
		hash, err := service.HashPassword(*adminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to hash admin password")
		}
		if err := users.SetPasswordHash(ctx, admin.ID, hash); err != nil {
			log.Fatal().Err(err).Msg("failed to set admin password")
		}
		log.Info().Str("email", admin.Email).Msg("🔑 admin can log in with the given password")
	}
	token, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Issue(admin)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to issue token")
	}
	fmt.Printf("Database seeding completed successfully!\nAdmin token for %s:\n%s\n", admin.Email, token)
}
