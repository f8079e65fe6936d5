package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/moneta/internal/auth"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
)

// CreateLibrarianCommand creates a librarian account. Registration through
// the web only ever creates readers.
type CreateLibrarianCommand struct {
	Username string
	Email    string

	// ReadPassword prompts for a secret. Defaults to a masked terminal read.
	ReadPassword func(prompt string) (string, error)
	Out          io.Writer
}

func NewCreateLibrarianCommand() *CreateLibrarianCommand {
	return &CreateLibrarianCommand{
		ReadPassword: readPassword,
		Out:          os.Stdout,
	}
}

func newCreateLibrarianCommand(e *env) *cobra.Command {
	c := NewCreateLibrarianCommand()

	cmd := &cobra.Command{
		Use:   "create-librarian",
		Short: "Create a librarian account",
		Example: "  moneta create-librarian --username shelley --email shelley@example.com\n" +
			"  echo secret1 | moneta create-librarian -u shelley -e shelley@example.com",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(e)
			if err != nil {
				return err
			}
			defer app.Close()

			_, err = c.Run(app.Auth)
			return err
		},
	}

	cmd.Flags().StringVarP(&c.Username, "username", "u", "", "librarian username (required)")
	cmd.Flags().StringVarP(&c.Email, "email", "e", "", "librarian email (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// Run prompts for the password and creates the account.
func (c *CreateLibrarianCommand) Run(service *auth.Service) (*entities.User, error) {
	password, err := c.ReadPassword("Password: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.ReadPassword("Confirm password: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	user, err := service.CreateLibrarian(auth.SignupInput{
		Username:        c.Username,
		Email:           c.Email,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			return nil, fmt.Errorf("username or email already taken: %w", err)
		}
		return nil, err
	}

	fmt.Fprintf(c.Out, "Librarian %q created (id %d)\n", user.Username, user.ID)
	return user, nil
}

var stdin = bufio.NewReader(os.Stdin)

// readPassword masks input on a terminal and reads a plain line otherwise,
// so passwords can be piped in.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}
