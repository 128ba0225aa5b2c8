// Package main is a utility for generating invitation token material. The
// platform stores only the bcrypt hash and a short lookup prefix of each
// invitation token — never the raw value — so this tool is used when manually
// seeding or verifying invitation records in the database without running the
// full server. Running it locally produces a raw token plus the hash and prefix
// that can be inserted directly into the invitations table.
package main

import (
	"fmt"
	"log"

	"github.com/classdesk/classdesk/internal/auth"
)

func main() {
	token, hash, prefix, err := auth.GenerateInvitationToken()
	if err != nil {
		log.Fatalf("Failed to generate invitation token: %v", err)
	}

	fmt.Printf("token:  %s\n", token)
	fmt.Printf("prefix: %s\n", prefix)
	fmt.Printf("hash:   %s\n", hash)
}
