// Command seed populates the database with demo users, posts and reports.
package main

import (
	"context"
	"flag"
	"log"

	"mybuddy/internal/config"
	"mybuddy/internal/database"
	"mybuddy/internal/middleware"
	"mybuddy/internal/seed"
)

func main() {
	def := seed.DefaultOptions()
	users := flag.Int("users", def.Users, "Number of users to create")
	admins := flag.Int("admins", def.Admins, "How many of the users are moderators")
	unconfirmed := flag.Int("unconfirmed", def.Unconfirmed, "Users left awaiting account confirmation")
	posts := flag.Int("posts", def.PostsPerUser, "Posts per user")
	reports := flag.Int("reports", def.Reports, "Number of reports to file")
	randSeed := flag.Int64("rand-seed", 0, "Faker seed for reproducible data (0 = random)")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)
	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Seed(ctx, seed.Options{
		Users:        *users,
		Admins:       *admins,
		Unconfirmed:  *unconfirmed,
		PostsPerUser: *posts,
		Reports:      *reports,
		Password:     seed.DefaultPassword,
		RandSeed:     *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	for i, u := range res.Users {
		if u.IsAdmin {
			log.Printf("moderator: %s", u.Username)
		}
		if i >= *admins {
			break
		}
	}
	for _, t := range res.Tokens {
		log.Printf("confirm user %d: /user/confirm-account?token=%s", t.UserID, t.ConfirmationToken)
	}
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
