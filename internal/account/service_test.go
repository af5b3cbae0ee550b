package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/testutil"
	"github.com/souqlab/souq/pkg/common"
)

func strptr(s string) *string { return &s }

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))

	user, err := svc.SignUp(ctx, " Mona@Example.com ", "secret1", "Mona Adel")
	require.NoError(t, err)
	assert.Equal(t, "mona@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Mona Adel", profile.FullName)

	_, err = svc.SignUp(ctx, "mona@example.com", "another1", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	signed, err := svc.SignIn(ctx, "MONA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signed.ID)
	require.NotNil(t, signed.LastLogin)

	_, err = svc.SignIn(ctx, "mona@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(testutil.NewDB(t))
	_, err := svc.SignUp(context.Background(), "not-an-email", "secret1", "x")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.SignUp(context.Background(), "a@b.co", "123", "x")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = svc.SignUp(context.Background(), "long@b.co", strings.Repeat("a", 73), "x")
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = svc.SignUp(context.Background(), "max@b.co", strings.Repeat("a", 72), "x")
	assert.NoError(t, err)
}

func TestSignInDisabledUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db)
	user, err := svc.SignUp(ctx, "off@example.com", "secret1", "Off")
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.AppUser{}).Where("id = ?", user.ID).Update("status", common.DISABLED).Error)

	_, err = svc.SignIn(ctx, "off@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))
	user, err := svc.SignUp(ctx, "pw@example.com", "secret1", "Pw")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "newpass1", "newpass2"), ErrPasswordMismatch)
	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "abc", "abc"), ErrPasswordTooShort)
	long := strings.Repeat("b", 80)
	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, long, long), ErrPasswordTooLong)
	assert.ErrorIs(t, svc.ChangePassword(ctx, 12345, "newpass1", "newpass1"), ErrUserNotFound)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "newpass1", "newpass1"))

	_, err = svc.SignIn(ctx, "pw@example.com", "newpass1")
	assert.NoError(t, err)
}

func TestUpsertProfileKeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))

	p, err := svc.GetProfile(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = svc.UpsertProfile(ctx, 99, ProfileInput{FullName: strptr("Karim"), Phone: strptr("+20100")})
	require.NoError(t, err)
	assert.Equal(t, "Karim", p.FullName)

	p, err = svc.UpsertProfile(ctx, 99, ProfileInput{Address: strptr(" Cairo ")})
	require.NoError(t, err)
	assert.Equal(t, "Karim", p.FullName)
	assert.Equal(t, "+20100", p.Phone)
	assert.Equal(t, "Cairo", p.Address)
}

type fakeCustomers struct {
	calls int
	err   error
}

func (f *fakeCustomers) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "cus_" + name, nil
}

func TestEnsureStripeCustomerOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))
	user, err := svc.SignUp(ctx, "buyer@example.com", "secret1", "Buyer")
	require.NoError(t, err)

	cc := &fakeCustomers{}
	id, err := svc.EnsureStripeCustomer(ctx, user.ID, cc)
	require.NoError(t, err)
	assert.Equal(t, "cus_Buyer", id)

	id, err = svc.EnsureStripeCustomer(ctx, user.ID, cc)
	require.NoError(t, err)
	assert.Equal(t, "cus_Buyer", id)
	assert.Equal(t, 1, cc.calls)

	_, err = svc.EnsureStripeCustomer(ctx, 777, &fakeCustomers{err: errors.New("boom")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEmailsAndAudit(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db)
	a, err := svc.SignUp(ctx, "a@example.com", "secret1", "A")
	require.NoError(t, err)
	b, err := svc.SignUp(ctx, "b@example.com", "secret1", "B")
	require.NoError(t, err)

	emails, err := svc.Emails(ctx, a.ID, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{a.ID: "a@example.com", b.ID: "b@example.com"}, emails)

	require.NoError(t, svc.Audit(ctx, "a@example.com", "127.0.0.1", "signin", "ok"))
	var count int64
	db.Model(&domain.SysOprLog{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
