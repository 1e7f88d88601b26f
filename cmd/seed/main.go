package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/reservations/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedEvents(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed events: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 25); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedCareServices(context.Background(), pool); err != nil {
		log.Fatalf("seed care services: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedEvents(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d events", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		title := gofakeit.Sentence(3)
		title = strings.TrimSuffix(title, ".")
		slug := fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(title, " ", "-")), i)
		location := gofakeit.City()
		startsAt := time.Now().AddDate(0, 0, gofakeit.Number(1, 90)).Truncate(time.Hour)
		endsAt := startsAt.Add(time.Duration(gofakeit.Number(1, 6)) * time.Hour)
		capacity := gofakeit.Number(10, 300)
		priceCents := gofakeit.Number(5, 200) * 100

		_, err := tx.Exec(ctx, `
			INSERT INTO events (id, slug, title, description, location, starts_at, ends_at, capacity, price_cents, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		`, id, slug, title, gofakeit.Paragraph(1, 3, 8, " "), location, startsAt, endsAt, capacity, priceCents)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("events seeded")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, full_name, specialty, active)
			VALUES ($1, $2, $3, true)
		`, id, name, spec)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedCareServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name        string
		durationMin int
		priceCents  int
	}{
		{"General Consultation", 30, 8000},
		{"Extended Consultation", 60, 14000},
		{"Follow-up Visit", 15, 4500},
		{"Annual Physical", 45, 12000},
		{"Vaccination", 15, 3000},
		{"Minor Procedure", 60, 25000},
	}

	log.Printf("seeding %d care services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		_, err := tx.Exec(ctx, `
			INSERT INTO care_services (id, name, duration_min, price_cents, active)
			VALUES ($1, $2, $3, $4, true)
		`, uuid.New(), s.name, s.durationMin, s.priceCents)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("care services seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, email, phone, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, id, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
