package seed

import (
	"os"

	"backend/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type demoUser struct {
	Nombre      string
	Email       string
	Role        string
	PasswordEnv string
	Fallback    string
}

var demoUsers = []demoUser{
	{Nombre: "Administrador", Email: "admin@contactos.com", Role: model.RoleAdmin, PasswordEnv: "SEED_ADMIN_PASSWORD", Fallback: "admin123"},
	{Nombre: "Marcos Bejerano", Email: "marcos@contactos.com", Role: model.RoleComercial, PasswordEnv: "SEED_COMERCIAL_PASSWORD", Fallback: "comercial123"},
	{Nombre: "Adrian Vazquez", Email: "adrian@contactos.com", Role: model.RoleComercial, PasswordEnv: "SEED_COMERCIAL_PASSWORD", Fallback: "comercial123"},
	{Nombre: "Alex Cantero", Email: "alex@contactos.com", Role: model.RoleComercial, PasswordEnv: "SEED_COMERCIAL_PASSWORD", Fallback: "comercial123"},
	{Nombre: "Rafa Cruz", Email: "rafa@contactos.com", Role: model.RoleComercial, PasswordEnv: "SEED_COMERCIAL_PASSWORD", Fallback: "comercial123"},
}

// Run creates the demo directory on first boot. It is a no-op when the
// users table already has rows, so restarts never duplicate accounts.
func Run(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, du := range demoUsers {
		password := os.Getenv(du.PasswordEnv)
		if password == "" {
			password = du.Fallback
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := model.User{
			Nombre:   du.Nombre,
			Email:    du.Email,
			Password: string(hashed),
			Role:     du.Role,
			Activo:   true,
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Info().Str("email", du.Email).Str("role", du.Role).Msg("seeded user")
	}
	return nil
}
