package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/robmartinson/tablecopy/internal/config"
	"github.com/robmartinson/tablecopy/internal/database"
)

func main() {
	// load the .env file if it exists
	godotenv.Load()

	if err := config.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var connErr *database.ConnectionError
		if errors.As(err, &connErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
