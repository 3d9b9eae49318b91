package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/database/postgres"
)

const minPasswordLength = 8

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a dashboard account",
	Long: `Create a dashboard account. The password is taken from --password or
read from the first line of standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserCreate,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("password", "", "Password for the new account")
}

// openDatabase connects and migrates using DATABASE_URL.
func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if p := mustGetString(cmd, "password"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	if username == "" {
		return errors.New("username must not be empty")
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	cfg := config.Load()
	pool, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := postgres.NewUserRepository(pool).CreateUser(cmd.Context(), username, string(hash))
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Printf("Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}
