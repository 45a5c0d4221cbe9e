// Command ingest-token prints a bearer token for the operator API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/helpdesk-insight/ticket-ingest/internal/auth"
)

func main() {
	subject := flag.String("subject", "", "operator identity stored in the token")
	role := flag.String("role", string(auth.RoleViewer), "viewer or admin")
	ttl := flag.Int("ttl", 60, "token lifetime in minutes")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if len(secret) < 16 {
		log.Fatal("ADMIN_JWT_SECRET must be set to at least 16 characters")
	}
	if *subject == "" {
		log.Fatal("-subject is required")
	}

	token, expiresAt, err := auth.NewTokenManager(secret, *ttl).GenerateToken(*subject, auth.Role(*role))
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
}
