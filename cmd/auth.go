package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// Auth command flags.
var (
	registerFlagEmail string
)

var loginCmd = &cobra.Command{
	Use:   "login USERNAME|EMAIL",
	Short: "Sign in to the alarm server",
	Long: `Sign in to the alarm server. The password is read from the terminal
without echo, or from the first line of stdin when piped.

Examples:
  timely login ada
  echo "$PASSWORD" | timely login ada@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register USERNAME --email EMAIL",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and cancel this device's alarms",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	registerCmd.Flags().StringVarP(&registerFlagEmail, "email", "e", "", "Email address")
	_ = registerCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// readPassword prompts on the terminal, or reads one line from in.
func readPassword(prompt string, in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func requirePassword(password string) error {
	if password == "" {
		return timelyerrors.NewUserError("password required", "Type it at the prompt or pipe it on stdin.")
	}
	return nil
}

func printUser(status string, user model.User) error {
	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": status, "user": user})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Signed in as %s", user.Username))
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword("Password: ", os.Stdin)
	if err != nil {
		return err
	}
	if err := requirePassword(password); err != nil {
		return err
	}

	account, err := ctx.Account()
	if err != nil {
		return err
	}
	user, err := account.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	return printUser("logged_in", user)
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword("Choose a password: ", os.Stdin)
	if err != nil {
		return err
	}
	if err := requirePassword(password); err != nil {
		return err
	}

	account, err := ctx.Account()
	if err != nil {
		return err
	}
	user, err := account.Register(cmd.Context(), args[0], registerFlagEmail, password)
	if err != nil {
		return err
	}
	return printUser("registered", user)
}

func runLogout(cmd *cobra.Command, args []string) error {
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	if err := account.Logout(cmd.Context()); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintStatus("logged_out", "")
	}
	ctx.CLIFormatter().Success("Signed out. Alarms on this device were cancelled.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	user, ok, err := account.Whoami(cmd.Context())
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		body := map[string]any{"authenticated": ok}
		if ok {
			body["user"] = user
		}
		return ctx.JSONFormatter().JSON(body)
	}
	if !ok {
		ctx.CLIFormatter().Muted("Not logged in.")
		return nil
	}
	ctx.Formatter.Printf("%s (id %d)\n", user.Username, user.ID)
	if user.Email != "" {
		ctx.CLIFormatter().Muted(user.Email)
	}
	return nil
}
