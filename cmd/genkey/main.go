// Package main is a development utility for generating a client key with a
// ready-to-run SQL INSERT statement, so developers can quickly seed a usable
// key in a local database without running the full server flow. Do not use
// generated keys in production — use the admin API, which records the issuing
// administrator and label properly.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/workdesk/workdesk/internal/auth"
)

func main() {
	prefix := "wdk_"
	if len(os.Args) > 1 {
		prefix = os.Args[1]
	}

	token, err := auth.GenerateClientKey(prefix)
	if err != nil {
		log.Fatalf("Failed to generate client key: %v", err)
	}

	fmt.Printf("Client key: %s\n", token)
	fmt.Println()
	fmt.Println("Seed it with:")
	fmt.Printf("  INSERT INTO client_keys (token, label, created_by)\n")
	fmt.Printf("  VALUES ('%s', 'dev key', 'seed');\n", token)
}
