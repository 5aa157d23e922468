package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/identity"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/lockout"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	"github.com/dropDatabas3/sessionguard/internal/revocation"
	"github.com/dropDatabas3/sessionguard/internal/security/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Emit(e audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t audit.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t audit.EventType) (audit.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return audit.Event{}, false
}

type fixture struct {
	svc    Service
	fc     *clock.Fake
	reg    *revocation.Memory
	dir    *identity.MemoryDirectory
	events *recorder
}

var fastHash = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	fc := clock.NewFake(t0)

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Issuer:        "sessionguard-test",
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
	}, fc)
	require.NoError(t, err)

	lim, err := rate.NewMemoryLimiter(rate.DefaultPolicies(), time.Hour, fc)
	require.NoError(t, err)

	var users []identity.User
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		h, err := password.Hash(fastHash, "pw-"+id)
		require.NoError(t, err)
		users = append(users, identity.User{ID: id, Role: "user", PasswordHash: h})
	}
	dir, err := identity.NewMemoryDirectory(users...)
	require.NoError(t, err)

	f := &fixture{fc: fc, reg: revocation.NewMemory(fc), dir: dir, events: &recorder{}}
	deps := Deps{
		Codec:    codec,
		Registry: f.reg,
		Limiter:  lim,
		Lockout:  lockout.New(lockout.Config{}, fc),
		Identity: dir,
		Audit:    f.events,
		Clock:    fc,
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc, err = NewService(deps)
	require.NoError(t, err)
	return f
}

var device = jwtx.ClientMeta{Address: "10.0.0.1", UserAgent: "test/1.0"}

func TestLogin_RecordsRefreshLive(t *testing.T) {
	f := newFixture(t)
	pair, err := f.svc.Login(context.Background(), "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, f.reg.IsRefreshTokenLive("u1", pair.RefreshToken))
	assert.Equal(t, t0.Add(DefaultAccessTTL), pair.AccessExpiresAt)
	assert.Equal(t, t0.Add(DefaultRefreshTTL), pair.RefreshExpiresAt)
	assert.Equal(t, 1, f.events.count(audit.LoginSuccess))

	claims, err := f.svc.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, jwtx.RoleUser, claims.Role)
}

func TestLogin_InvalidRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), "u1", jwtx.Role("owner"), device)
	assert.Error(t, err)
	assert.Empty(t, OutcomeOf(err))
}

func TestRefresh_RotatesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.True(t, f.reg.IsRefreshTokenLive("u1", next.RefreshToken))
	assert.False(t, f.reg.IsRefreshTokenLive("u1", pair.RefreshToken))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.ErrorIs(t, err, ErrRevoked)
	assert.ErrorIs(t, Public(err), ErrReauthenticate)

	// la cadena sigue funcionando con el token nuevo
	third, err := f.svc.Refresh(ctx, next.RefreshToken, device)
	require.NoError(t, err)
	assert.Equal(t, jwtx.RoleUser, third.Role)

	assert.Equal(t, 2, f.events.count(audit.TokenRotated))
	ev, ok := f.events.last(audit.TokenRejected)
	require.True(t, ok)
	assert.Equal(t, string(OutcomeRevoked), ev.Outcome)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	const n = 16
	var (
		wg       sync.WaitGroup
		ok, rej  atomic.Int32
		start    = make(chan struct{})
		newPairs = make(chan *Pair, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := f.svc.Refresh(ctx, pair.RefreshToken, device)
			switch {
			case err == nil:
				ok.Add(1)
				newPairs <- p
			case errors.Is(err, ErrRevoked):
				rej.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(newPairs)

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), rej.Load())
	assert.Len(t, f.reg.ListRefreshTokens("u1"), 1)
}

func TestRefresh_ExpiredAndMalformed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, "not-a-token", device)
	assert.ErrorIs(t, err, ErrMalformed)

	// un access token no sirve como refresh
	_, err = f.svc.Refresh(ctx, pair.AccessToken, device)
	assert.ErrorIs(t, err, ErrMalformed)

	f.fc.Advance(DefaultRefreshTTL)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, device)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, Public(err), ErrReauthenticate)

	ev, ok := f.events.last(audit.TokenRejected)
	require.True(t, ok)
	assert.Equal(t, audit.SeverityWarn, ev.Severity())
}

func TestRefresh_DisabledPrincipalRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u4", jwtx.RoleUser, device)
	require.NoError(t, err)

	h, err := password.Hash(fastHash, "pw-u4")
	require.NoError(t, err)
	require.NoError(t, f.dir.Upsert(identity.User{ID: "u4", Role: "user", PasswordHash: h, Disabled: true}))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken, device)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestRefresh_KeepsClientMetaWhenNoneGiven(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken, jwtx.ClientMeta{})
	require.NoError(t, err)
	recs, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, next.RefreshJTI, recs[0].JTI)
	assert.Equal(t, device, recs[0].Client)
}

func TestRefresh_RateLimitedAfterRepeatedGarbage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		_, err := f.svc.Refresh(ctx, "garbage", device)
		require.ErrorIs(t, err, ErrMalformed)
	}
	_, err := f.svc.Refresh(ctx, "garbage", device)
	require.ErrorIs(t, err, ErrRateLimited)
	var d *Denial
	require.True(t, errors.As(err, &d))
	assert.Equal(t, 15*time.Minute, d.RetryAfter)
	assert.Equal(t, 1, f.events.count(audit.RateLimitBlocked))
}

// hookCodec corre before justo antes de firmar el próximo refresh token.
type hookCodec struct {
	Codec
	armed  atomic.Bool
	before func()
}

func (h *hookCodec) Issue(subject string, role jwtx.Role, kind jwtx.Kind, ttl time.Duration, meta jwtx.ClientMeta) (jwtx.Issued, error) {
	if kind == jwtx.KindRefresh && h.armed.CompareAndSwap(true, false) {
		h.before()
	}
	return h.Codec.Issue(subject, role, kind, ttl, meta)
}

func TestRefresh_LogoutAllDuringRotationLeavesNothingLive(t *testing.T) {
	ctx := context.Background()
	var hook *hookCodec
	f := newFixture(t, func(d *Deps) {
		hook = &hookCodec{Codec: d.Codec}
		d.Codec = hook
	})
	pair, err := f.svc.Login(ctx, "u3", jwtx.RoleUser, device)
	require.NoError(t, err)

	killed := -1
	hook.before = func() { killed, _ = f.svc.LogoutAll(ctx, "u3") }
	hook.armed.Store(true)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.ErrorIs(t, err, ErrRevoked)
	assert.Nil(t, next)
	assert.Equal(t, 1, killed)

	recs, err := f.svc.Sessions(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRefresh_LogoutAllAfterRotationKillsNewToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u3", jwtx.RoleUser, device)
	require.NoError(t, err)
	next, err := f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.NoError(t, err)

	n, err := f.svc.LogoutAll(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.svc.Refresh(ctx, next.RefreshToken, device)
	assert.ErrorIs(t, err, ErrRevoked)
}

// flakyDirectory falla con un error de backend mientras down esté activo.
type flakyDirectory struct {
	identity.Directory
	down atomic.Bool
}

func (d *flakyDirectory) Lookup(ctx context.Context, subjectID string) (identity.Principal, error) {
	if d.down.Load() {
		return identity.Principal{}, errors.New("directory unavailable")
	}
	return d.Directory.Lookup(ctx, subjectID)
}

func TestRefresh_DirectoryOutageKeepsToken(t *testing.T) {
	ctx := context.Background()
	var flaky *flakyDirectory
	f := newFixture(t, func(d *Deps) {
		flaky = &flakyDirectory{Directory: d.Identity}
		d.Identity = flaky
	})
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	flaky.down.Store(true)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.Error(t, err)
	assert.Empty(t, OutcomeOf(err), "backend errors are not denials")
	assert.True(t, f.reg.IsRefreshTokenLive("u1", pair.RefreshToken))

	flaky.down.Store(false)
	next, err := f.svc.Refresh(ctx, pair.RefreshToken, device)
	require.NoError(t, err)
	assert.True(t, f.reg.IsRefreshTokenLive("u1", next.RefreshToken))
}

func TestLogout_BlacklistsAccessAndKillsRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	for i := 0; i < 14; i++ {
		_, err = f.svc.Verify(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrRevoked, "minute %d", i)
		f.fc.Advance(time.Minute)
	}
	f.fc.Advance(time.Minute)
	_, err = f.svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken, device)
	assert.ErrorIs(t, err, ErrRevoked)
	assert.Equal(t, 2, f.events.count(audit.TokenRevoked))

	// idempotente
	assert.NoError(t, f.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken))
	assert.NoError(t, f.svc.Logout(ctx, "", "junk"))
}

func TestLogoutAll_ThreeDevices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var pairs []*Pair
	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		p, err := f.svc.Login(ctx, "u3", jwtx.RoleUser, jwtx.ClientMeta{Address: addr})
		require.NoError(t, err)
		pairs = append(pairs, p)
		f.fc.Advance(time.Second)
	}
	other, err := f.svc.Login(ctx, "u1", jwtx.RoleUser, device)
	require.NoError(t, err)

	recs, err := f.svc.Sessions(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "10.0.0.3", recs[0].Client.Address, "newest first")

	n, err := f.svc.LogoutAll(ctx, "u3", pairs[0].AccessToken, other.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, p := range pairs {
		assert.False(t, f.reg.IsRefreshTokenLive("u3", p.RefreshToken))
	}
	assert.True(t, f.reg.IsRefreshTokenLive("u1", other.RefreshToken))

	// el access suministrado quedó revocado; el resto vive hasta su exp
	_, err = f.svc.Verify(ctx, pairs[0].AccessToken)
	assert.ErrorIs(t, err, ErrRevoked)
	_, err = f.svc.Verify(ctx, pairs[1].AccessToken)
	assert.NoError(t, err)
	_, err = f.svc.Verify(ctx, other.AccessToken)
	assert.NoError(t, err, "tokens of other subjects are ignored")

	_, err = f.svc.LogoutAll(ctx, " ")
	assert.Error(t, err)
}

func TestAuthenticate_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pair, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "pw-u1", Client: device})
	require.NoError(t, err)
	assert.Equal(t, "u1", pair.SubjectID)
	assert.True(t, f.reg.IsRefreshTokenLive("u1", pair.RefreshToken))
}

func TestAuthenticate_LockoutScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u2", Secret: "wrong", Client: device})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
		f.fc.Advance(10 * time.Second)
	}
	assert.Equal(t, 1, f.events.count(audit.LockoutEngaged))

	_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u2", Secret: "pw-u2", Client: jwtx.ClientMeta{Address: "10.9.9.9"}})
	require.ErrorIs(t, err, ErrLocked)
	var d *Denial
	require.True(t, errors.As(err, &d))
	lockedAt := t0.Add(40 * time.Second)
	assert.Equal(t, lockedAt.Add(30*time.Minute), d.Until)
	assert.Equal(t, 30*time.Minute-10*time.Second, d.RetryAfter)
	assert.ErrorIs(t, Public(err), ErrLocked)

	f.fc.Set(d.Until)
	_, err = f.svc.Authenticate(ctx, Credentials{SubjectID: "u2", Secret: "pw-u2", Client: jwtx.ClientMeta{Address: "10.9.9.9"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.count(audit.LockoutCleared))
}

func TestAuthenticate_SuccessResetsLockoutCounter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fail := func(addr string) error {
		_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "nope", Client: jwtx.ClientMeta{Address: addr}})
		return err
	}
	for i := 0; i < 4; i++ {
		require.ErrorIs(t, fail("10.0.1.1"), ErrInvalidCredentials)
	}
	_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "pw-u1", Client: jwtx.ClientMeta{Address: "10.0.1.1"}})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.ErrorIs(t, fail("10.0.1.2"), ErrInvalidCredentials)
	}
	_, err = f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "pw-u1", Client: jwtx.ClientMeta{Address: "10.0.1.2"}})
	assert.NoError(t, err)
	assert.Equal(t, 0, f.events.count(audit.LockoutEngaged))
}

func TestAuthenticate_RateLimitedByClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// fallos contra cuentas distintas: ninguna se bloquea, pero la IP sí
	for i, id := range []string{"u1", "u2", "u3", "u4", "ghost"} {
		_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: id, Secret: "bad", Client: device})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}
	_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "pw-u1", Client: device})
	require.ErrorIs(t, err, ErrRateLimited)
	var d *Denial
	require.True(t, errors.As(err, &d))
	assert.Equal(t, 15*time.Minute, d.RetryAfter)

	// otra IP no está afectada
	_, err = f.svc.Authenticate(ctx, Credentials{SubjectID: "u1", Secret: "pw-u1", Client: jwtx.ClientMeta{Address: "10.0.0.2"}})
	assert.NoError(t, err)
}

// slowDirectory cuenta las verificaciones de credenciales y tarda delay en cada una.
type slowDirectory struct {
	identity.Directory
	delay  time.Duration
	checks atomic.Int32
}

func (d *slowDirectory) VerifySecret(ctx context.Context, subjectID, secret string) (bool, error) {
	d.checks.Add(1)
	time.Sleep(d.delay)
	return d.Directory.VerifySecret(ctx, subjectID, secret)
}

// parallelGuesses lanza n Authenticate con password incorrecta a la vez.
func parallelGuesses(f *fixture, n int, creds func(i int) Credentials) map[Outcome]int {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = map[Outcome]int{}
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.Authenticate(context.Background(), creds(i))
			mu.Lock()
			out[OutcomeOf(err)]++
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
	return out
}

func TestAuthenticate_ParallelGuessesBoundedByLockout(t *testing.T) {
	var slow *slowDirectory
	f := newFixture(t, func(d *Deps) {
		slow = &slowDirectory{Directory: d.Identity, delay: 50 * time.Millisecond}
		d.Identity = slow
	})

	out := parallelGuesses(f, 40, func(i int) Credentials {
		// una IP por intento: solo el lockout de la cuenta puede frenarlos
		return Credentials{SubjectID: "u2", Secret: "wrong", Client: jwtx.ClientMeta{Address: fmt.Sprintf("10.1.0.%d", i)}}
	})
	assert.Equal(t, int32(lockout.DefaultThreshold), slow.checks.Load())
	assert.Equal(t, lockout.DefaultThreshold, out[OutcomeInvalidCredentials])
	assert.Equal(t, 40-lockout.DefaultThreshold, out[OutcomeRateLimited]+out[OutcomeLocked])
	assert.Equal(t, 1, f.events.count(audit.LockoutEngaged))

	_, err := f.svc.Authenticate(context.Background(), Credentials{SubjectID: "u2", Secret: "pw-u2", Client: jwtx.ClientMeta{Address: "10.2.0.1"}})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAuthenticate_ParallelGuessesBoundedByClientWindow(t *testing.T) {
	var slow *slowDirectory
	f := newFixture(t, func(d *Deps) {
		slow = &slowDirectory{Directory: d.Identity, delay: 50 * time.Millisecond}
		d.Identity = slow
	})

	out := parallelGuesses(f, 40, func(i int) Credentials {
		// una cuenta por intento desde la misma IP
		return Credentials{SubjectID: fmt.Sprintf("acct-%d", i), Secret: "wrong", Client: device}
	})
	assert.Equal(t, int32(5), slow.checks.Load())
	assert.Equal(t, 5, out[OutcomeInvalidCredentials])
	assert.Equal(t, 35, out[OutcomeRateLimited])

	_, err := f.svc.Authenticate(context.Background(), Credentials{SubjectID: "u1", Secret: "pw-u1", Client: device})
	require.ErrorIs(t, err, ErrRateLimited)
	var d *Denial
	require.True(t, errors.As(err, &d))
	assert.Equal(t, 15*time.Minute, d.RetryAfter)
}

func TestAuthenticate_UnknownSubjectLooksLikeBadPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Authenticate(ctx, Credentials{SubjectID: "ghost", Secret: "x", Client: device})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, Credentials{SubjectID: "", Secret: "x", Client: device})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Deps{})
	assert.ErrorIs(t, err, ErrMissingDependency)

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: strings.Repeat("a", 32), RefreshSecret: strings.Repeat("b", 32)}, nil)
	require.NoError(t, err)
	_, err = NewService(Deps{Codec: codec, Registry: revocation.NewMemory(nil), AccessTTL: time.Hour, RefreshTTL: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidTTL)

	svc, err := NewService(Deps{Codec: codec, Registry: revocation.NewMemory(nil)})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), Credentials{SubjectID: "a", Secret: "b"})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestPublicAndDenial(t *testing.T) {
	assert.ErrorIs(t, Public(ErrMalformed), ErrReauthenticate)
	assert.ErrorIs(t, Public(ErrRevoked), ErrReauthenticate)
	assert.ErrorIs(t, Public(ErrInvalidCredentials), ErrInvalidCredentials)

	d := &Denial{Outcome: OutcomeRateLimited, RetryAfter: 3 * time.Second}
	assert.ErrorIs(t, d, ErrRateLimited)
	assert.NotErrorIs(t, d, ErrLocked)
	assert.Contains(t, d.Error(), "retry after 3s")

	plain := errors.New("boom")
	assert.Equal(t, plain, Public(plain))
	assert.Equal(t, Outcome(""), OutcomeOf(plain))
}
