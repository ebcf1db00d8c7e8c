// Command user_inspect prints the accounts of a user store. The relay must be
// stopped first since badger holds an exclusive lock on its directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"secure-chat/repositories"

	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "Path to the badger user store")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("-db is required")
	}

	db, err := repositories.OpenBadger(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users, err := repositories.ListUsers(db)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Created", "Hash"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, user := range users {
		// Only the parameters of the hash, never the digest
		hash := user.PasswordHash
		if len(hash) > 31 {
			hash = hash[:31] + "..."
		}
		table.Append([]string{user.Username, user.CreatedAt.Format("2006-01-02 15:04:05"), hash})
	}
	table.Render()
	fmt.Printf("%d account(s)\n", len(users))
}
