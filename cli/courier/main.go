package main

import (
	"os"

	"github.com/joho/godotenv"

	couriercmder "github.com/papercomputeco/courier/cmd/courier"
)

func main() {
	// A missing .env is fine; COURIER_* variables may come from the environment.
	_ = godotenv.Load()

	cmd := couriercmder.NewCourierCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
