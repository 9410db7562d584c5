package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fantiadl/pkg/auth"
	"fantiadl/pkg/config"
	"fantiadl/pkg/fantia"
	"fantiadl/pkg/ratelimit"
	"fantiadl/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	verifyLogin bool
	logoutAll   bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Fantia sessions",
	Long: `Manage stored Fantia sessions.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - FANTIADL_SESSION_ID (read only)

Never share your session cookie or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a Fantia session",
	Long: `Store the _session_id cookie of a logged in browser under a name.
Run 'fantiadl auth guide' to see how to find it.`,
	Example: `  fantiadl auth login
  fantiadl auth login main --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored sessions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE:  runList,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to find the session cookie",
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)

	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "check the session against Fantia before storing it")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored session")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return err
	}
	console := ui.NewConsole(cmd.OutOrStdout(), false)
	reader := bufio.NewReader(cmd.InOrStdin())

	name := "default"
	if len(args) > 0 {
		name = args[0]
	}
	if existing, _ := manager.Retrieve(name); existing != nil {
		answer := prompt(cmd.OutOrStdout(), reader, fmt.Sprintf("Account '%s' already exists. Replace it? (y/N): ", name))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), "_session_id cookie value: ")
	session, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}
	userAgent := prompt(cmd.OutOrStdout(), reader, "User agent (press Enter for the default): ")

	if verifyLogin {
		if err := verifySession(cmd, session, userAgent); err != nil {
			return err
		}
		console.Success("Session accepted by Fantia")
	}

	account := &auth.Account{Name: name, SessionID: session, UserAgent: userAgent}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	console.Success("Account saved: %s", name)
	console.Field("Session ID", auth.MaskSecret(session))
	console.Printf("\nUse it with:\n  fantiadl --account %s https://fantia.jp/fanclubs/<id>\n", name)
	return nil
}

func verifySession(cmd *cobra.Command, session, userAgent string) error {
	cfg := config.DefaultConfig()
	client, err := fantia.NewClient(fantia.Options{
		SessionID: session,
		UserAgent: userAgent,
		Timeout:   cfg.Download.Timeout,
		Limiter:   ratelimit.New(0),
	})
	if err != nil {
		return err
	}
	return client.VerifySession(cmd.Context())
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return err
	}
	console := ui.NewConsole(cmd.OutOrStdout(), false)

	var names []string
	switch {
	case logoutAll:
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, a := range accounts {
			if a.Name != auth.EnvAccountName {
				names = append(names, a.Name)
			}
		}
	case len(args) == 1:
		names = args
	default:
		return errors.New("name an account or pass --all")
	}

	if len(names) == 0 {
		console.Info("No stored accounts")
		return nil
	}
	for _, name := range names {
		if err := manager.Delete(name); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		console.Success("Account removed: %s", name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return err
	}
	console := ui.NewConsole(cmd.OutOrStdout(), false)

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		console.Info("No stored accounts. Use 'fantiadl auth login' to add one.")
		return nil
	}

	for i, account := range accounts {
		s := auth.SanitizeAccount(account)
		console.Printf("%d. %s\n", i+1, s.Name)
		console.Field("   Session ID", s.SessionID)
		if s.UserAgent != "" {
			console.Field("   User Agent", s.UserAgent)
		}
		if !s.LastModified.IsZero() {
			console.Field("   Last Modified", s.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func prompt(w io.Writer, r *bufio.Reader, question string) string {
	fmt.Fprint(w, question)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// readSecret reads without echo on a terminal, else a plain line
func readSecret(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
