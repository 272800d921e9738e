package bootstrap

import (
	"fmt"
	"path/filepath"

	"mathgenie/internal/cache"
	"mathgenie/internal/config"
	"mathgenie/internal/database"
	"mathgenie/internal/generate"
	"mathgenie/internal/middleware"
	"mathgenie/internal/seed"
	"mathgenie/internal/server"
	"mathgenie/internal/store"
	"mathgenie/internal/thumbnail"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemoData bool
}

// InitRuntime connects the data stores and assembles the server dependency
// bundle. The primary database and Redis are allowed to be unreachable at
// boot; the local store must open, everything else degrades gracefully.
func InitRuntime(cfg *config.Config, opts Options) (server.Deps, error) {
	var deps server.Deps

	primary, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Warn("Primary database unreachable, continuing with local storage only", "error", err)
	} else {
		deps.PrimaryDB = primary
	}

	local, err := database.OpenLocal(cfg)
	if err != nil {
		return server.Deps{}, fmt.Errorf("local database initialization failed: %w", err)
	}
	deps.LocalDB = local

	// May leave the client nil if Redis is unreachable.
	cache.InitRedis(cfg.RedisURL)
	deps.Redis = cache.GetClient()

	blobs, err := store.NewBlobStore(filepath.Join(cfg.DataDir, "media"), cfg.MediaBaseURL)
	if err != nil {
		return server.Deps{}, fmt.Errorf("blob store initialization failed: %w", err)
	}
	deps.Blobs = blobs

	if cfg.AIConfigured() {
		deps.Model = generate.NewGeminiClient(cfg.AIAPIKey, cfg.AIModel, cfg.AIEndpoint, cfg.AIMaxTokens)
	} else {
		middleware.Logger.Warn("AI_API_KEY not set, generation endpoints disabled")
	}

	raster, err := thumbnail.NewChromeRasterizer(cfg.ChromePath, cfg.CaptureSettle)
	if err != nil {
		middleware.Logger.Warn("No headless browser found, thumbnail capture disabled", "error", err)
	} else {
		deps.Rasterizer = raster
	}

	if opts.SeedDemoData {
		target := deps.PrimaryDB
		if target == nil {
			target = deps.LocalDB
		}
		if err := seed.DemoData(target, seed.Options{}); err != nil {
			return server.Deps{}, fmt.Errorf("demo data seeding failed: %w", err)
		}
	}

	return deps, nil
}
