package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roofdocs/nexus/internal/auth"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/validation"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a := &server.App{Config: cfg}
		if _, err := server.InitializeDB(a); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			_ = server.CloseDB(a)
		}()

		var email string
		if err := survey.AskOne(&survey.Input{Message: "Email:"}, &email, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			if !validation.ValidEmail(strings.TrimSpace(s)) {
				return errors.New("enter a valid email address")
			}
			return nil
		})); err != nil {
			return err
		}
		email = strings.ToLower(strings.TrimSpace(email))

		var fullName string
		if err := survey.AskOne(&survey.Input{Message: "Full name:"}, &fullName, survey.WithValidator(survey.Required)); err != nil {
			return err
		}

		var password string
		if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			if problems := validation.CheckPassword(s, validation.DefaultPasswordPolicy()); len(problems) > 0 {
				return errors.New(strings.Join(problems, "; "))
			}
			return nil
		})); err != nil {
			return err
		}

		var confirm string
		if err := survey.AskOne(&survey.Password{Message: "Confirm password:"}, &confirm); err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}

		hashed, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user, err := queries.CreateUser(a.DB, email, hashed, validation.StripHTML(fullName), db.RoleAdmin, "")
		if err != nil {
			if errors.Is(err, queries.ErrDuplicateEmail) {
				return fmt.Errorf("a user with email %s already exists", email)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		color.Green("Admin user created: %s (%s)", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
}
