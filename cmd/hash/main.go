// Package main is a utility for generating bcrypt hashes of admin passwords.
// The portal stores only bcrypt hashes — never the raw passwords — so this
// tool is used when manually seeding the first admin account without running
// the full server. The output can be inserted directly into the users table.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/workdesk/workdesk/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <password>", os.Args[0])
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
