//go:build ignore

// Seeds a development database with statements and random votes.
//
//	go run scripts/seed_statements.go -statements 200 -users 50
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"Agora/internal/config"
	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/votes"
	"Agora/internal/db/migrations"
	postgresRepo "Agora/internal/db/postgres"
)

var topics = []string{"housing", "transport", "climate", "education", "health", "taxes"}

var regions = []string{"north", "south", "east", "west", ""}

var claims = []string{
	"should be free for everyone under 25",
	"needs a dedicated public budget line",
	"should be decided by a citizens' assembly",
	"is better handled by the region than the state",
	"deserves a referendum within the next two years",
}

func main() {
	numStatements := flag.Int("statements", 100, "number of statements to create")
	numUsers := flag.Int("users", 40, "number of simulated voters")
	voteRate := flag.Float64("vote-rate", 0.4, "probability that a user votes on a statement")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := postgresRepo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	statementRepo := postgresRepo.NewStatementRepository(db)
	voteService := votes.NewService(postgresRepo.NewVoteRepository(db, nil), pagination.NewCodec(cfg.CursorSecret), nil)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now().Add(-30 * 24 * time.Hour)

	created := 0
	cast := 0
	for i := 0; i < *numStatements; i++ {
		topic := topics[rng.Intn(len(topics))]
		st := &statements.Statement{
			Title:     fmt.Sprintf("%s %s", titleCase(topic), claims[rng.Intn(len(claims))]),
			Body:      fmt.Sprintf("Seeded statement #%d about %s.", i+1, topic),
			Topic:     topic,
			Region:    regions[rng.Intn(len(regions))],
			CreatedAt: start.Add(time.Duration(rng.Int63n(int64(30 * 24 * time.Hour)))),
		}
		if err := statementRepo.Create(ctx, st); err != nil {
			log.Fatalf("Failed to create statement: %v", err)
		}
		created++

		for u := 0; u < *numUsers; u++ {
			if rng.Float64() > *voteRate {
				continue
			}
			_, err := voteService.RecordVote(ctx, votes.RecordVoteRequest{
				UserID:      fmt.Sprintf("seed-user-%03d", u),
				StatementID: st.ID.String(),
				Decision:    string(votes.Decisions[rng.Intn(len(votes.Decisions))]),
				Source:      "seed",
			})
			if err != nil {
				log.Printf("Warning: failed to record vote: %v", err)
				continue
			}
			cast++
		}
	}

	log.Printf("Created %d statements and %d votes", created, cast)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
