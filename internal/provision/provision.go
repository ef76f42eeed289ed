// Package provision implements the operator flow that creates a user
// account and binds login credentials to it.
package provision

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/prompt"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/services"
)

type UserProvisioner interface {
	Provision(ctx context.Context, level models.PermissionLevel) (*models.UserAccount, error)
}

type CredentialProvisioner interface {
	Create(ctx context.Context, in services.CreateCredentialsInput) error
}

// PasswordReader returns a secret typed by the operator. The caller wipes it.
type PasswordReader func(label string, w io.Writer) ([]byte, error)

type Tool struct {
	users       UserProvisioner
	credentials CredentialProvisioner
	in          *bufio.Reader
	out         io.Writer
	password    PasswordReader
}

func NewTool(users UserProvisioner, credentials CredentialProvisioner, in io.Reader, out io.Writer) *Tool {
	return &Tool{
		users:       users,
		credentials: credentials,
		in:          bufio.NewReader(in),
		out:         out,
		password:    prompt.Password,
	}
}

// Run asks for a permission level, an email and a password (twice), then
// creates the account and its credentials. The password policy is checked
// before the account is created so a weak password leaves nothing behind.
func (t *Tool) Run(ctx context.Context) (*models.UserAccount, error) {
	options := make([]string, len(models.PermissionLevels))
	for i, l := range models.PermissionLevels {
		options[i] = l.String()
	}

	level, err := prompt.Choice(t.in, "Permission level", options, t.out)
	if err != nil {
		return nil, err
	}

	email, err := prompt.Text(t.in, "Email", t.out)
	if err != nil {
		return nil, err
	}

	password, err := t.password("Password", t.out)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(password)

	confirm, err := t.password("Repeat password", t.out)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return nil, common.ErrPasswordMismatch
	}
	if err := services.CheckPasswordPolicy(string(password)); err != nil {
		return nil, err
	}

	user, err := t.users.Provision(ctx, models.PermissionLevel(level))
	if err != nil {
		return nil, err
	}

	err = t.credentials.Create(ctx, services.CreateCredentialsInput{
		UserID:          user.ID,
		Email:           email,
		Password:        string(password),
		ConfirmPassword: string(confirm),
	})
	if err != nil {
		return nil, fmt.Errorf("user %s created without credentials: %w", user.ID, err)
	}

	fmt.Fprintf(t.out, "Created user %s (%s) with login %s\n", user.ID, user.PermissionLevel, email)
	return user, nil
}
