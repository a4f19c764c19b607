// Command create-admin bootstraps the first administrator account and can
// rehash legacy plaintext passwords.
//
//	go run ./cmd/create-admin -email admin@example.edu -password 'S3cure-pass' -name "Site Admin"
//	go run ./cmd/create-admin -rehash
package main

import (
	"context"
	"flag"
	"strings"

	"go.uber.org/zap"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/services"
	"research-showcase-api/utils"
)

func main() {
	email := flag.String("email", "", "administrator email")
	password := flag.String("password", "", "administrator password")
	name := flag.String("name", "", "full name")
	department := flag.String("department", "", "department")
	rehash := flag.Bool("rehash", false, "hash any stored plaintext passwords and exit")
	flag.Parse()

	cfg := config.MustLoad()
	log, err := config.InitLogging(cfg.LogLevel, "console", "")
	if err != nil {
		panic(err)
	}
	defer config.SyncLogging()

	ctx := context.Background()
	if err := config.InitDB(ctx, cfg); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *rehash {
		rehashPasswords(log)
		return
	}

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}
	user, err := services.NewAccountService(config.DB).Bootstrap(ctx, services.NewUserInput{
		Email:      *email,
		Password:   *password,
		FullName:   *name,
		Department: *department,
	})
	if err != nil {
		log.Fatal("failed to create administrator", zap.Error(err))
	}
	log.Info("administrator created", zap.Uint("user_id", user.UserID), zap.String("email", user.Email))
}

// rehashPasswords replaces plaintext passwords with bcrypt hashes. Hashed rows are skipped.
func rehashPasswords(log *zap.Logger) {
	var users []models.User
	if err := config.DB.Find(&users).Error; err != nil {
		log.Fatal("failed to fetch users", zap.Error(err))
	}

	updated := 0
	for _, user := range users {
		if strings.HasPrefix(user.Password, "$2") {
			continue
		}
		hashed, err := utils.HashPassword(user.Password)
		if err != nil {
			log.Warn("failed to hash password", zap.String("email", user.Email), zap.Error(err))
			continue
		}
		if err := config.DB.Model(&user).Update("password", hashed).Error; err != nil {
			log.Warn("failed to update password", zap.String("email", user.Email), zap.Error(err))
			continue
		}
		updated++
	}
	log.Info("password rehash completed", zap.Int("updated", updated), zap.Int("total", len(users)))
}
