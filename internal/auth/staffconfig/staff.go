package staffconfig

import (
	"strings"

	"github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/auth"
)

type account struct {
	staff auth.Staff
	hash  string
}

// StaffRepository serves the staff accounts listed in configuration.
type StaffRepository struct {
	accounts map[string]account
}

func NewStaffRepository(accounts []internal.StaffAccount) auth.RepositoryAPI {
	repo := &StaffRepository{accounts: make(map[string]account, len(accounts))}
	for _, a := range accounts {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if email == "" || a.PasswordHash == "" {
			continue
		}
		name := a.Name
		if name == "" {
			name = email
		}
		perms := a.Permissions
		if len(perms) == 0 {
			perms = []string{auth.PermissionViewDonations}
		}
		repo.accounts[email] = account{
			staff: auth.Staff{Email: email, Name: name, Permissions: append([]string(nil), perms...)},
			hash:  a.PasswordHash,
		}
	}
	return repo
}

func (r *StaffRepository) GetStaffByEmail(email string) (*auth.Staff, string, error) {
	a, ok := r.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", nil
	}
	staff := a.staff
	staff.Permissions = append([]string(nil), a.staff.Permissions...)
	return &staff, a.hash, nil
}
