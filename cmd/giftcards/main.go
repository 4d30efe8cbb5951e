package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return newRootCmd().Execute()
}
