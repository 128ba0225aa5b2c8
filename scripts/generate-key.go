// Package main is a development utility for generating a test invitation token
// with its bcrypt hash and lookup prefix pre-computed. It prints the raw token,
// hash, prefix, and a ready-to-run SQL INSERT statement so developers can
// quickly seed an acceptable invitation in a local database without running the
// full server flow. Do not use generated tokens in production — create
// invitations through the API so delivery and auditing happen properly.
package main

import (
	"fmt"
	"log"

	"github.com/classdesk/classdesk/internal/auth"
)

func main() {
	token, hash, prefix, err := auth.GenerateInvitationToken()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Raw token (give to the invitee):")
	fmt.Printf("  %s\n\n", token)
	fmt.Println("Lookup prefix:")
	fmt.Printf("  %s\n\n", prefix)
	fmt.Println("Bcrypt hash (stored):")
	fmt.Printf("  %s\n\n", hash)
	fmt.Println("Seed SQL (substitute org, email, role and inviter):")
	fmt.Printf(`  INSERT INTO invitations (id, organization_id, email, role, token_prefix, token_hash, invited_by, expires_at)
  VALUES (gen_random_uuid(), '<org-id>', '<email>', 'MEMBER', '%s', '%s', '<user-id>', NOW() + INTERVAL '7 days');
`, prefix, hash)
}
