// issue-token prints a bearer token for local testing of the plan API.
//
// Usage:
//   API_SECRET=... go run ./cmd/issue-token -user alice
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
)

func main() {
	user := flag.String("user", "", "Required: user id placed in the token")
	role := flag.String("role", "owner", "Role claim")
	flag.Parse()

	if strings.TrimSpace(*user) == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		os.Exit(1)
	}
	token, err := utils.JwtGenerate(*user, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
