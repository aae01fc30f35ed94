package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/bulk-mailer/config"
	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	pginfra "github.com/oksasatya/bulk-mailer/internal/infrastructure/postgres"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

// Seeds a demo account with one template and a few recipients. Safe to rerun.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	users := pginfra.NewUserRepository(pool)
	templates := pginfra.NewTemplateRepository(pool)
	recipients := pginfra.NewRecipientRepository(pool)

	email := "demo@example.com"
	password := "password123"

	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		hash, herr := helpers.HashPassword(password)
		if herr != nil {
			log.Fatalf("failed to hash password: %v", herr)
		}
		u = &entity.User{Email: email, Password: hash, Name: "Demo User", IsVerified: true}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("failed to seed user: %v", err)
		}
	} else if err != nil {
		log.Fatalf("failed to look up user: %v", err)
	}
	fmt.Printf("seeded user: id=%s email=%s password=%s\n", u.ID, email, password)

	existing, err := templates.List(ctx, u.ID, entity.TemplateFilter{Category: "outreach"})
	if err != nil {
		log.Fatalf("failed to list templates: %v", err)
	}
	if len(existing) == 0 {
		tpl := &entity.Template{
			UserID:      u.ID,
			Name:        "Application follow-up",
			Description: "Short follow-up after an application",
			Subject:     "Following up, {{name}}",
			Body:        "<p>Hi {{name}},</p><p>I wanted to follow up on my application to {{company}} for the {{position}} role.</p>",
			IsHTML:      true,
			Category:    "outreach",
			IsActive:    true,
		}
		tpl.RefreshVariables()
		if err := templates.Create(ctx, tpl); err != nil {
			log.Fatalf("failed to seed template: %v", err)
		}
		fmt.Printf("seeded template: id=%s variables=%v\n", tpl.ID, tpl.Variables)
	}

	seed := []entity.Recipient{
		{Email: "jane@acme.test", Name: "Jane", CustomFields: map[string]string{"company": "Acme", "position": "Backend Engineer"}, Tags: []string{"hiring"}},
		{Email: "raj@globex.test", Name: "Raj", CustomFields: map[string]string{"company": "Globex", "position": "SRE"}, Tags: []string{"hiring", "referral"}},
		{Email: "li@initech.test", Name: "Li", CustomFields: map[string]string{"company": "Initech"}, Tags: []string{}},
	}
	for i := range seed {
		r := &seed[i]
		r.UserID = u.ID
		r.Status = entity.RecipientActive
		switch err := recipients.Create(ctx, r); {
		case err == nil:
			fmt.Printf("seeded recipient: %s\n", r.Email)
		case errors.Is(err, repository.ErrDuplicate):
		default:
			log.Fatalf("failed to seed recipient %s: %v", r.Email, err)
		}
	}
}
