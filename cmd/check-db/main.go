// Package main is a diagnostic tool for testing database connectivity and
// inspecting live platform data. It connects to the database, queries the
// organizations, memberships and invitations tables, and prints a summary to
// stdout. The binary exits with a non-zero code on any failure so it can be
// embedded in health checks or CI/CD pipeline steps to gate deployments on a
// reachable, populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "classdesk"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=classdesk password=%s dbname=classdesk sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("=== ORGANIZATIONS ===")
	rows, err := db.Query("SELECT id, name, org_type FROM organizations ORDER BY created_at")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, orgType string
		if err := rows.Scan(&id, &name, &orgType); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("  %s  %s (%s)\n", id, name, orgType)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}

	fmt.Println("\n=== COUNTS ===")
	for _, table := range []string{"users", "memberships", "invitations", "audit_logs"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			log.Fatalf("Count query for %s failed: %v", table, err)
		}
		fmt.Printf("  %-12s %d\n", table, count)
	}
}
