package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/admintools"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/database"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	database.SetupDatabase()
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	tools := admintools.New(database.GetDB())

	switch command {
	case "create-admin":
		requireArgs(args, 2, "create-admin <email> <password>")
		u, created, err := tools.CreateAdmin(args[0], args[1])
		if err != nil {
			log.Fatalf("Creating admin failed: %v", err)
		}
		if created {
			log.Printf("Admin %s created (id %d)", u.Email, u.ID)
		} else {
			log.Printf("Existing user %s promoted to admin (id %d)", u.Email, u.ID)
		}

	case "set-role":
		requireArgs(args, 2, "set-role <email> <role>")
		u, err := tools.SetRole(args[0], args[1])
		if err != nil {
			log.Fatalf("Setting role failed: %v", err)
		}
		log.Printf("User %s now has role %s", u.Email, u.Role)

	case "delete-user":
		requireArgs(args, 1, "delete-user <email>")
		if err := tools.DeleteUser(args[0]); err != nil {
			log.Fatalf("Deleting user failed: %v", err)
		}
		log.Printf("User %s deleted", args[0])

	case "grant-subscription":
		requireArgs(args, 2, "grant-subscription <email> <PREMIUM|ADVANCE>")
		sub, created, err := tools.GrantSubscription(args[0], args[1])
		if err != nil {
			log.Fatalf("Granting subscription failed: %v", err)
		}
		if created {
			log.Printf("%s subscription granted until %s", sub.PlanType, sub.CurrentPeriodEnd.Format("2006-01-02"))
		} else {
			log.Printf("User already has an active %s subscription until %s", sub.PlanType, sub.CurrentPeriodEnd.Format("2006-01-02"))
		}

	case "revoke-subscription":
		requireArgs(args, 1, "revoke-subscription <email>")
		n, err := tools.RevokeSubscriptions(args[0])
		if err != nil {
			log.Fatalf("Revoking subscriptions failed: %v", err)
		}
		log.Printf("%d active subscription(s) canceled", n)

	default:
		printUsage()
		os.Exit(1)
	}
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		log.Fatalf("Usage: go run cmd/admin/main.go %s", usage)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/admin/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  create-admin <email> <password>             - create or promote a verified admin")
	fmt.Println("  set-role <email> <USER|ADMIN|BANNED>        - change a user's role")
	fmt.Println("  delete-user <email>                         - delete a non-admin user and their data")
	fmt.Println("  grant-subscription <email> <PREMIUM|ADVANCE> - grant a 30 day subscription")
	fmt.Println("  revoke-subscription <email>                 - cancel all active subscriptions")
}
