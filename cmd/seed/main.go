package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/slotwise/doctor-calendar/internal/db"
	"github.com/slotwise/doctor-calendar/internal/scheduling"
)

const (
	seedDays     = 14
	clinicOpens  = 9  // 09:00 local
	clinicCloses = 17 // 17:00 local
	patientCount = 200
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	repo := scheduling.NewPgRepository(pool)

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), repo, patientCount, log); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedOpenSlots(context.Background(), repo, log); err != nil {
		log.Fatal().Err(err).Msg("seed open slots")
	}

	log.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, repo *scheduling.PgRepository, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		if _, err := repo.Create(ctx, gofakeit.Name(), gofakeit.Phone()); err != nil {
			return err
		}
	}

	log.Info().Msg("patients seeded")
	return nil
}

func seedOpenSlots(ctx context.Context, repo *scheduling.PgRepository, log zerolog.Logger) error {
	today := time.Now().Truncate(24 * time.Hour)

	total := 0
	for d := 1; d <= seedDays; d++ {
		day := today.AddDate(0, 0, d)
		start := time.Date(day.Year(), day.Month(), day.Day(), clinicOpens, 0, 0, 0, time.Local)
		end := time.Date(day.Year(), day.Month(), day.Day(), clinicCloses, 0, 0, 0, time.Local)

		windows, err := scheduling.SlotWindows(start, end)
		if err != nil {
			return err
		}

		created, err := repo.CreateOpenSlots(ctx, windows)
		if err != nil {
			return err
		}
		total += len(created)
	}

	log.Info().Int("slots", total).Int("days", seedDays).Msg("open slots seeded")
	return nil
}
