// cmd/tools/seed-registry/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"examflow-workers/internal/common/config"
	"examflow-workers/internal/common/database"
	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/registry"
)

type candidateSeed struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DateOfBirth  string `json:"dateOfBirth"`
	ExamName     string `json:"examName"`
	ExamCategory string `json:"examCategory"`
	ExamCenter   string `json:"examCenter"`
}

func main() {
	candidatesCmd := flag.NewFlagSet("candidates", flag.ExitOnError)
	candidatesFile := candidatesCmd.String("file", "", "JSON file with an array of candidates to register")
	prefix := candidatesCmd.String("prefix", "", "Registration number prefix (defaults to configured ocr.exam_prefix)")

	keyCmd := flag.NewFlagSet("answer-key", flag.ExitOnError)
	answers := keyCmd.String("answers", "", "Answer string, one character per question (e.g. ABACD)")
	examName := keyCmd.String("exam", "", "Exam the key belongs to (e.g. SSC-2026)")
	version := keyCmd.String("version", "", "Paper version label")
	activate := keyCmd.Bool("activate", false, "Activate this key, superseding the current active key")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "candidates":
		candidatesCmd.Parse(os.Args[2:])
		if *candidatesFile == "" {
			fmt.Println("Error: -file is required for candidates.")
			candidatesCmd.Usage()
			os.Exit(1)
		}
		regPrefix := *prefix
		if regPrefix == "" {
			regPrefix = cfg.OCR.ExamPrefix
		}

		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			fmt.Printf("Error connecting to redis: %v\n", err)
			os.Exit(1)
		}
		defer rdb.Close()

		if err := seedCandidates(ctx, registry.NewCandidateStore(pg.DB, rdb.Client, log), *candidatesFile, regPrefix); err != nil {
			fmt.Printf("Error seeding candidates: %v\n", err)
			os.Exit(1)
		}

	case "answer-key":
		keyCmd.Parse(os.Args[2:])
		if *answers == "" || *examName == "" {
			fmt.Println("Error: -answers and -exam are required for answer-key.")
			keyCmd.Usage()
			os.Exit(1)
		}
		store := registry.NewAnswerKeyStore(pg.DB, log)
		rec := &registry.AnswerKeyRecord{
			ExamName:       *examName,
			Version:        *version,
			AnswerString:   *answers,
			TotalQuestions: len(*answers),
			Active:         *activate,
		}
		if err := store.Create(ctx, rec, *activate); err != nil {
			fmt.Printf("Error storing answer key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Stored answer key %s for %s (version %q, %d questions, active=%v)\n",
			rec.ID, rec.ExamName, rec.Version, rec.TotalQuestions, rec.Active)

	default:
		help()
		os.Exit(1)
	}
}

func seedCandidates(ctx context.Context, store *registry.CandidateStore, path, prefix string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var seeds []candidateSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, seed := range seeds {
		rec := &registry.CandidateRecord{
			RegistrationNumber: registry.NewRegistrationNumber(prefix),
			Name:               seed.Name,
			Email:              seed.Email,
			Phone:              seed.Phone,
			DateOfBirth:        seed.DateOfBirth,
			ExamName:           seed.ExamName,
			ExamCategory:       seed.ExamCategory,
			ExamCenter:         seed.ExamCenter,
		}
		if err := store.Create(ctx, rec); err != nil {
			return fmt.Errorf("register %s: %w", seed.Name, err)
		}
		fmt.Printf("Registered %s: %s\n", rec.Name, rec.RegistrationNumber)
	}

	fmt.Printf("Seeded %d candidates\n", len(seeds))
	return nil
}

func help() {
	fmt.Println("Usage: seed-registry <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  candidates -file <path> [-prefix XYZ]       Register candidates from a JSON file")
	fmt.Println("  answer-key -answers <string> -exam <name> [-version B] [-activate]")
	fmt.Println("                                              Store an answer key; -activate supersedes the current one")
}
