// Package main writes a fresh SESSION_SECRET into the .env file.
package main

import (
	"errors"
	"flag"
	"io/fs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/civic-events/backend/pkg/utils"
)

const secretBytes = 32

func main() {
	path := flag.String("file", ".env", "path to the env file to update")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := resetSecret(*path); err != nil {
		logger.Fatal("reset secret", zap.String("file", *path), zap.Error(err))
	}
	logger.Info("session secret rotated; existing sessions are now invalid", zap.String("file", *path))
}

// resetSecret replaces SESSION_SECRET in path, keeping every other variable.
// A missing file is created with ENV=development.
func resetSecret(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		env = map[string]string{"ENV": "development"}
	}
	secret, err := utils.RandomSecret(secretBytes)
	if err != nil {
		return err
	}
	env["SESSION_SECRET"] = secret
	return godotenv.Write(env, path)
}
