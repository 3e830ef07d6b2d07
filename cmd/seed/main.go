package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/workflowguard/workflowguard/internal/adapter/persistence"
	"github.com/workflowguard/workflowguard/internal/app"
	"github.com/workflowguard/workflowguard/internal/config"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// sample HubSpot-style workflow used for local demos
const sampleWorkflow = `{
  "name": "Lead nurture",
  "actions": [
    {"actionId": "1", "type": "DELAY", "delayMillis": 86400000},
    {"actionId": "2", "type": "EMAIL", "emailContentId": 1001},
    {"actionId": "3", "type": "SET_PROPERTY", "propertyName": "lifecyclestage", "newValue": "lead"}
  ]
}`

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := app.New(ctx, cfg, app.NewLogger(cfg, "workflowguard-seed"))
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer container.Close()

	user := &domain.User{
		ID:    uuid.New().String(),
		Name:  getenvDefault("SEED_USER_NAME", "Demo User"),
		Email: getenvDefault("SEED_USER_EMAIL", "demo@example.com"),
		Role:  getenvDefault("SEED_USER_ROLE", ports.RoleUser),
		Plan:  getenvDefault("SEED_USER_PLAN", "enterprise"),
	}
	if err := persistence.NewPostgresUserRepository(container.DB).Create(ctx, user); err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}

	workflow := &domain.Workflow{
		ID:         uuid.New().String(),
		ExternalID: getenvDefault("SEED_WORKFLOW_EXTERNAL_ID", "demo-1"),
		Name:       "Lead nurture",
		OwnerID:    user.ID,
	}
	if err := persistence.NewPostgresWorkflowRepository(container.DB).Create(ctx, workflow); err != nil {
		log.Fatalf("failed to seed workflow: %v", err)
	}

	version, err := container.Versions.ProtectWorkflow(ctx, workflow.ID, user.ID, json.RawMessage(sampleWorkflow))
	if err != nil {
		log.Fatalf("failed to protect workflow: %v", err)
	}

	token, err := container.Tokens.GenerateAccessToken(ports.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Plan:   user.Plan,
	})
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Printf("Seeded user: id=%s email=%s plan=%s\n", user.ID, user.Email, user.Plan)
	fmt.Printf("Seeded workflow: id=%s version=%d\n", workflow.ID, version.VersionNumber)
	fmt.Printf("Access token: %s\n", token)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
