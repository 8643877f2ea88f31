// Command seed fills the database and blob store with demo authors and posts.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/blobstore"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/repository"
	"inkwell/internal/seed"
	"inkwell/internal/service"
)

func main() {
	numAuthors := flag.Int("authors", 10, "Number of authors to create")
	numPosts := flag.Int("posts", 40, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Delete existing posts and users before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production environment")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	cache.InitRedis(cfg.RedisURL)

	ctx := context.Background()
	store, err := blobstore.Open(ctx, blobstore.Options{
		Driver:    cfg.BlobDriver,
		Bucket:    cfg.BucketName,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.BlobEndpoint,
		UseSSL:    cfg.BlobUseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	media := service.NewMediaCoordinator(store, cfg.PublicBaseURL, cfg.BlobOpTimeout, middleware.Logger)
	users := service.NewUserService(userRepo, media, service.NewAuthService(cfg.JWTSecret), cfg.BcryptCost)
	posts := service.NewPostService(repository.NewPostRepository(db), userRepo, media)

	s := seed.NewSeeder(db, users, posts, *seedValue)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	authors, err := s.SeedAuthors(ctx, *numAuthors)
	if err != nil {
		log.Fatalf("Author seeding failed: %v", err)
	}
	if _, err := s.SeedPosts(ctx, authors, *numPosts); err != nil {
		log.Fatalf("Post seeding failed: %v", err)
	}

	log.Printf("Seeded %d authors and %d posts. Password for every author: %s", len(authors), *numPosts, seed.DefaultPassword)
}
