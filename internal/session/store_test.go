package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"esnafpanel-core/internal/model"
)

type fakeAPI struct {
	loginResp    model.AuthResponse
	loginErr     error
	registerResp model.AuthResponse
	registerErr  error
	logoutErr    error
	logoutCalls  int
	profileUser  model.User
	profileErr   error
}

func (f *fakeAPI) Login(ctx context.Context, email, sifre string) (model.AuthResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(ctx context.Context, in model.RegisterInput) (model.AuthResponse, error) {
	return f.registerResp, f.registerErr
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) Profile(ctx context.Context) (model.User, error) {
	return f.profileUser, f.profileErr
}

func newTestStore(api *fakeAPI) (*Store, *MemoryStorage) {
	storage := NewMemoryStorage()
	store := NewStore(storage, nil)
	store.BindAPI(api)
	return store, storage
}

func authResponse(access, refresh string) model.AuthResponse {
	return model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Kullanici:    &model.User{ID: "u-1", Email: "ayse@esnaf.dev", Ad: "Ayşe", Soyad: "Yılmaz"},
	}
}

func TestLoginSuccess(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1")}
	store, storage := newTestStore(api)

	err := store.Login(context.Background(), "ayse@esnaf.dev", "gizli")
	require.NoError(t, err)

	require.True(t, store.IsAuthenticated())
	require.False(t, store.IsLoading())
	require.Empty(t, store.LastError())
	require.Equal(t, "T1", store.AccessToken())
	require.Equal(t, "R1", store.RefreshToken())
	require.Equal(t, "Ayşe Yılmaz", store.CurrentUser().FullName())

	stored, err := storage.Read()
	require.NoError(t, err)
	require.Equal(t, "T1", stored.AccessToken)
	require.Equal(t, "R1", stored.RefreshToken)
	require.NotNil(t, stored.User)
}

func TestLoginFailureKeepsMessage(t *testing.T) {
	api := &fakeAPI{loginErr: errors.New("E-posta veya şifre hatalı")}
	store, _ := newTestStore(api)

	err := store.Login(context.Background(), "ayse@esnaf.dev", "yanlis")
	require.Error(t, err)

	require.False(t, store.IsAuthenticated())
	require.False(t, store.IsLoading())
	require.Equal(t, "E-posta veya şifre hatalı", store.LastError())
	require.Empty(t, store.AccessToken())
	require.Nil(t, store.CurrentUser())
}

func TestLoginClearsPreviousError(t *testing.T) {
	api := &fakeAPI{loginErr: errors.New("E-posta veya şifre hatalı")}
	store, _ := newTestStore(api)

	_ = store.Login(context.Background(), "ayse@esnaf.dev", "yanlis")
	require.NotEmpty(t, store.LastError())

	api.loginErr = nil
	api.loginResp = authResponse("T1", "R1")
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))
	require.Empty(t, store.LastError())
}

func TestRegisterSuccess(t *testing.T) {
	api := &fakeAPI{registerResp: authResponse("T1", "R1")}
	store, _ := newTestStore(api)

	in := model.RegisterInput{Email: "ayse@esnaf.dev", Sifre: "gizli", Ad: "Ayşe", Soyad: "Yılmaz"}
	require.NoError(t, store.Register(context.Background(), in))
	require.True(t, store.IsAuthenticated())
	require.Equal(t, "T1", store.AccessToken())
}

func TestLogoutClearsEvenWhenRemoteRejects(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1"), logoutErr: errors.New("boom")}
	store, storage := newTestStore(api)

	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	store.Logout(context.Background())

	require.Equal(t, 1, api.logoutCalls)
	require.False(t, store.IsAuthenticated())
	require.Empty(t, store.AccessToken())
	require.Empty(t, store.RefreshToken())
	require.Nil(t, store.CurrentUser())

	stored, err := storage.Read()
	require.NoError(t, err)
	require.Empty(t, stored.AccessToken)
}

func TestRehydrate(t *testing.T) {
	storage := NewMemoryStorage()
	user := &model.User{ID: "u-1", Email: "ayse@esnaf.dev"}
	require.NoError(t, storage.Write(Stored{AccessToken: "T1", RefreshToken: "R1", User: user}))

	store := NewStore(storage, nil)
	store.Rehydrate()

	require.True(t, store.IsAuthenticated())
	require.Equal(t, "T1", store.AccessToken())
	require.Equal(t, "R1", store.RefreshToken())
	require.Equal(t, "ayse@esnaf.dev", store.CurrentUser().Email)
}

func TestRehydrateEmptyStorage(t *testing.T) {
	store, _ := newTestStore(&fakeAPI{})
	store.Rehydrate()
	require.False(t, store.IsAuthenticated())
}

func TestReloadProfileOverwritesIdentityOnly(t *testing.T) {
	api := &fakeAPI{
		loginResp:   authResponse("T1", "R1"),
		profileUser: model.User{ID: "u-1", Email: "ayse@esnaf.dev", Ad: "Ayşe", Soyad: "Demir"},
	}
	store, _ := newTestStore(api)
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	store.ReloadProfile(context.Background())

	require.Equal(t, "Demir", store.CurrentUser().Soyad)
	require.Equal(t, "T1", store.AccessToken())
	require.Equal(t, "R1", store.RefreshToken())
}

func TestReloadProfileFailureLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1"), profileErr: errors.New("boom")}
	store, _ := newTestStore(api)
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	store.ReloadProfile(context.Background())

	require.True(t, store.IsAuthenticated())
	require.Equal(t, "Yılmaz", store.CurrentUser().Soyad)
	require.Empty(t, store.LastError())
}

func TestCommitRefreshedTokens(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1")}
	store, storage := newTestStore(api)
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	ok := store.CommitRefreshedTokens("R1", model.TokenPair{AccessToken: "T2", RefreshToken: "R2"})
	require.True(t, ok)
	require.Equal(t, "T2", store.AccessToken())
	require.Equal(t, "R2", store.RefreshToken())

	stored, err := storage.Read()
	require.NoError(t, err)
	require.Equal(t, "T2", stored.AccessToken)
}

func TestCommitRefusedAfterLogout(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1")}
	store, _ := newTestStore(api)
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	store.ForceLogout()

	ok := store.CommitRefreshedTokens("R1", model.TokenPair{AccessToken: "T2", RefreshToken: "R2"})
	require.False(t, ok)
	require.False(t, store.IsAuthenticated())
	require.Empty(t, store.AccessToken())
}

func TestCommitRefusedForStaleRefreshToken(t *testing.T) {
	api := &fakeAPI{loginResp: authResponse("T1", "R1")}
	store, _ := newTestStore(api)
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	// A second login rotated the pair while the exchange was in flight.
	api.loginResp = authResponse("T3", "R3")
	require.NoError(t, store.Login(context.Background(), "ayse@esnaf.dev", "gizli"))

	ok := store.CommitRefreshedTokens("R1", model.TokenPair{AccessToken: "T2", RefreshToken: "R2"})
	require.False(t, ok)
	require.Equal(t, "T3", store.AccessToken())
	require.Equal(t, "R3", store.RefreshToken())
}

func TestClearError(t *testing.T) {
	api := &fakeAPI{loginErr: errors.New("E-posta veya şifre hatalı")}
	store, _ := newTestStore(api)
	_ = store.Login(context.Background(), "ayse@esnaf.dev", "yanlis")

	store.ClearError()
	require.Empty(t, store.LastError())
}
