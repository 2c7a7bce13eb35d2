package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env so ORAC_DIR and friends can live next to the data.
	_ = godotenv.Load(".env")

	Execute()
}
