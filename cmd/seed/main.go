// Command main runs the demo data seeder for Math Genie.
package main

import (
	"flag"
	"log"

	"mathgenie/internal/config"
	"mathgenie/internal/database"
	"mathgenie/internal/middleware"
	"mathgenie/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 5, "Number of demo users to create")
	itemsPerUser := flag.Int("items", 4, "Number of gallery items per user")
	commentsPerItem := flag.Int("comments", 2, "Number of comments per item")
	likeProb := flag.Float64("like-prob", 0.3, "Probability that a user likes an item")
	shouldClean := flag.Bool("clean", true, "Remove existing demo data before seeding")
	local := flag.Bool("local", false, "Seed the local fallback store instead of the primary database")
	flag.Parse()

	log.Println("🌱 Demo Data Seeder")
	log.Println("===================")
	log.Printf("Target: %d users, %d items each, clean=%v\n", *numUsers, *itemsPerUser, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitMiddleware(cfg)

	db, err := database.Connect(cfg)
	if *local || err != nil {
		if err != nil {
			log.Printf("Primary database unavailable (%v), seeding local store", err)
		}
		db, err = database.OpenLocal(cfg)
		if err != nil {
			log.Fatalf("Failed to open local database: %v", err)
		}
	}

	opts := seed.Options{
		NumUsers:        *numUsers,
		ItemsPerUser:    *itemsPerUser,
		CommentsPerItem: *commentsPerItem,
		LikeProbability: *likeProb,
		ShouldClean:     *shouldClean,
	}
	if err := seed.DemoData(db, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! The gallery is now populated with demo content.")
}
