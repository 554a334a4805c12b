// Command moderator-hash prints an Argon2id hash for a moderator password.
// Moderator rows are provisioned directly in the moderators table.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/AnshRaj112/salvioris-moderation/pkg/utils"
)

func main() {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "read password:", err)
		os.Exit(1)
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "Password must be at least 8 characters long")
		os.Exit(1)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
