// Package main is a diagnostic tool for testing database connectivity and
// inspecting live portal data. It connects to the database, summarises the
// client_keys and projects tables, and prints the result to stdout. The
// binary exits with a non-zero code on any failure so it can be embedded in
// health checks or CI/CD pipeline steps to gate deployments on a reachable,
// populated database.
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
		dbPassword = "workdesk"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=workdesk password=%s dbname=workdesk sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("=== CLIENT KEYS ===")
	rows, err := db.Query("SELECT id, label, used, locked FROM client_keys ORDER BY id")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var label string
		var used, locked bool
		if err := rows.Scan(&id, &label, &used, &locked); err != nil {
			log.Printf("Warning: failed to scan key row: %v", err)
			continue
		}
		fmt.Printf("Key %d: %q used=%v locked=%v\n", id, label, used, locked)
	}

	fmt.Println("\n=== PROJECTS ===")
	rows2, err := db.Query("SELECT tenant_id, COUNT(*) FROM projects GROUP BY tenant_id ORDER BY tenant_id")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	count := 0
	for rows2.Next() {
		var tenantID string
		var projects int
		if err := rows2.Scan(&tenantID, &projects); err != nil {
			log.Printf("Warning: failed to scan project row: %v", err)
			continue
		}
		fmt.Printf("Tenant %s: %d project(s)\n", tenantID, projects)
		count++
	}

	if count == 0 {
		fmt.Println("No projects found!")
	}
}
