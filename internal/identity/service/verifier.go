package service

import (
	"context"

	identitydomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/domain"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	userdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

// CredentialVerifier checks an email/password pair. It returns ErrInvalidCredentials for
// an unknown, disabled or password-less account as well as for a wrong password.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*userdomain.User, error)
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// PasswordVerifier verifies local password identities.
type PasswordVerifier struct {
	users      UserRepo
	identities IdentityRepo
	hasher     security.PasswordHasher
	decoyHash  string
}

// NewPasswordVerifier returns a PasswordVerifier. A decoy hash is computed up front so
// lookups of unknown accounts spend the same hashing time as real ones.
func NewPasswordVerifier(users UserRepo, identities IdentityRepo, hasher security.PasswordHasher) (*PasswordVerifier, error) {
	decoy, err := hasher.Hash([]byte("decoy-password-for-unknown-accounts"))
	if err != nil {
		return nil, err
	}
	return &PasswordVerifier{users: users, identities: identities, hasher: hasher, decoyHash: decoy}, nil
}

func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var ident *identitydomain.Identity
	if user != nil && user.Status == userdomain.UserStatusActive {
		if ident, err = v.identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal); err != nil {
			return nil, err
		}
	}
	if ident == nil || ident.PasswordHash == "" {
		_ = v.hasher.Compare(v.decoyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
