package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsecase_Login(t *testing.T) {
	t.Run("factor none grants a session", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		u := f.addUser(t, "plain@example.com", entity.FactorNone, false)

		// Act
		out, err := f.uc.Login(context.Background(), LoginInput{Email: " Plain@Example.com ", Password: testPassword})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, entity.LoginGranted, out.Status)
		require.NotNil(t, out.Grant)
		assert.Equal(t, u.ID, out.Grant.UserID)
		assert.NotEmpty(t, out.Grant.SessionToken)
		assert.Nil(t, out.Pending)
	})

	t.Run("unknown account and wrong password look the same", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "ada@example.com", entity.FactorSMS, true)

		_, errUnknown := f.uc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: testPassword})
		_, errWrong := f.uc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "not the password"})

		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
		assert.Equal(t, "INVALID_CREDENTIALS", goerror.ReasonOf(errUnknown))
		assert.Empty(t, f.gateway.sent)
		assert.Zero(t, f.sessions.issued())
	})

	t.Run("sms opens a challenge and delivers a code", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "ada@example.com", entity.FactorSMS, true)

		out, err := f.uc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: testPassword})

		require.NoError(t, err)
		assert.Equal(t, entity.LoginSecondFactorRequired, out.Status)
		require.NotNil(t, out.Pending)
		assert.Equal(t, entity.FactorSMS, out.Pending.Factor)
		assert.Equal(t, entity.ChallengePurposeLogin, out.Pending.Purpose)
		assert.Equal(t, entity.DeliverySent, out.Pending.Delivery)
		assert.Equal(t, f.clock.Now().Add(5*time.Minute), out.Pending.ExpiresAt)
		require.Len(t, f.gateway.sent, 1)
		assert.Equal(t, testPhone, f.gateway.sent[0].phone)
		assert.Len(t, f.gateway.sent[0].code, 6)
		assert.Zero(t, f.sessions.issued())
	})

	t.Run("stored challenge never holds the code or reference", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "ada@example.com", entity.FactorSMS, true)

		ref := f.pending(t, "ada@example.com")
		code := f.gateway.lastCode(t)

		require.Len(t, f.cache.byID, 1)
		for id, ch := range f.cache.byID {
			assert.NotEqual(t, ref, id)
			assert.NotContains(t, ch.CodeHash, code)
			assert.NotEmpty(t, ch.CodeSalt)
		}
	})

	t.Run("delivery failure still opens the challenge", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "ada@example.com", entity.FactorSMS, true)
		f.gateway.err = errors.New("provider down")

		out, err := f.uc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: testPassword})

		require.NoError(t, err)
		assert.Equal(t, entity.DeliveryFailed, out.Pending.Delivery)
		assert.Len(t, f.cache.byID, 1)
	})

	t.Run("totp challenge sends nothing", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "totp@example.com", entity.FactorTOTP, true)

		out, err := f.uc.Login(context.Background(), LoginInput{Email: "totp@example.com", Password: testPassword})

		require.NoError(t, err)
		assert.Equal(t, entity.FactorTOTP, out.Pending.Factor)
		assert.Equal(t, entity.DeliveryNone, out.Pending.Delivery)
		assert.Empty(t, f.gateway.sent)
	})

	t.Run("unverified factor opens an enrollment challenge", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "new@example.com", entity.FactorTOTP, false)

		out, err := f.uc.Login(context.Background(), LoginInput{Email: "new@example.com", Password: testPassword})

		require.NoError(t, err)
		assert.Equal(t, entity.ChallengePurposeEnrollment, out.Pending.Purpose)
	})

	t.Run("a new login supersedes the previous challenge", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "ada@example.com", entity.FactorSMS, true)

		first := f.pending(t, "ada@example.com")
		firstCode := f.gateway.lastCode(t)
		second := f.pending(t, "ada@example.com")
		secondCode := f.gateway.lastCode(t)

		_, err := f.uc.SubmitSecondFactor(context.Background(), SecondFactorInput{ChallengeToken: first, Code: firstCode})
		assert.ErrorIs(t, err, ErrChallengeNotFound)

		out, err := f.uc.SubmitSecondFactor(context.Background(), SecondFactorInput{ChallengeToken: second, Code: secondCode})
		require.NoError(t, err)
		assert.Equal(t, entity.LoginGranted, out.Status)
	})

	t.Run("unknown account still verifies once", func(t *testing.T) {
		f := newFixture(t)
		counter := &burnCounter{Passwords: f.passwords}
		f.uc.passwords = counter

		_, err := f.uc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: testPassword})

		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, 1, counter.burns)
	})

	t.Run("legacy digest is upgraded on login", func(t *testing.T) {
		f := newFixture(t)
		hashers := map[string]hash.Hash{
			hash.AlgoBcrypt:   hash.NewBcrypt(4, "pepper"),
			hash.AlgoArgon2id: hash.NewArgon2id("pepper"),
		}
		legacy, err := hash.NewPasswords(hash.AlgoArgon2id, hashers)
		require.NoError(t, err)
		current, err := hash.NewPasswords(hash.AlgoBcrypt, hashers)
		require.NoError(t, err)
		f.passwords = legacy
		f.uc.passwords = current
		u := f.addUser(t, "plain@example.com", entity.FactorNone, false)
		require.Equal(t, hash.AlgoArgon2id, u.PasswordAlgo)

		_, err = f.uc.Login(context.Background(), LoginInput{Email: "plain@example.com", Password: testPassword})
		require.NoError(t, err)

		stored, err := f.db.GetUserByID(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, hash.AlgoBcrypt, stored.PasswordAlgo)

		out, err := f.uc.Login(context.Background(), LoginInput{Email: "plain@example.com", Password: testPassword})
		require.NoError(t, err)
		assert.Equal(t, entity.LoginGranted, out.Status)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.Login(context.Background(), LoginInput{Email: "not-an-email"})

		var ge *goerror.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, goerror.TypeValidation, ge.Type())
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newFixture(t)
		f.db.err = errors.New("connection refused")

		_, err := f.uc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: testPassword})

		var ge *goerror.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, goerror.TypeServer, ge.Type())
	})
}

func TestUsecase_Login_ConcurrentKeepsOneChallenge(t *testing.T) {
	f, _ := newRedisFixture(t)
	f.addUser(t, "ada@example.com", entity.FactorSMS, true)
	ctx := context.Background()

	const callers = 10
	var (
		wg   sync.WaitGroup
		refs = make([]string, callers)
		errs = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.uc.Login(ctx, LoginInput{Email: "ada@example.com", Password: testPassword})
			errs[i] = err
			if err == nil {
				refs[i] = out.Pending.ChallengeRef
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	require.Len(t, f.gateway.sent, callers)

	var (
		liveRef string
		live    *entity.Challenge
	)
	for _, ref := range refs {
		ch, err := f.uc.repoCache.GetChallenge(ctx, f.uc.digest.Digest(ref))
		if errors.Is(err, goerror.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		require.Empty(t, liveRef, "more than one live challenge")
		liveRef, live = ref, ch
	}
	require.NotEmpty(t, liveRef)

	var liveCode string
	for _, s := range f.gateway.sent {
		if f.uc.codeDigest(live.CodeSalt, s.code) == live.CodeHash {
			liveCode = s.code
		}
	}
	require.NotEmpty(t, liveCode, "live challenge code was never delivered")

	for _, ref := range refs {
		if ref == liveRef {
			continue
		}
		_, err := f.uc.SubmitSecondFactor(ctx, SecondFactorInput{ChallengeToken: ref, Code: liveCode})
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	}

	out, err := f.uc.SubmitSecondFactor(ctx, SecondFactorInput{ChallengeToken: liveRef, Code: liveCode})
	require.NoError(t, err)
	assert.Equal(t, entity.LoginGranted, out.Status)
	assert.Equal(t, 1, f.sessions.issued())
}

func TestUsecase_LoginByPhone(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ada@example.com", entity.FactorSMS, true)

	out, err := f.uc.LoginByPhone(context.Background(), LoginByPhoneInput{PhoneNumber: testPhone, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, entity.FactorSMS, out.Pending.Factor)

	_, err = f.uc.LoginByPhone(context.Background(), LoginByPhoneInput{PhoneNumber: "+15559999999", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.uc.LoginByPhone(context.Background(), LoginByPhoneInput{PhoneNumber: "12345", Password: testPassword})
	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, goerror.TypeValidation, ge.Type())
}

type burnCounter struct {
	*hash.Passwords
	burns int
}

func (b *burnCounter) Burn(plaintext string) {
	b.burns++
	b.Passwords.Burn(plaintext)
}
