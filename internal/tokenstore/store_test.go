package tokenstore

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexahealth/nexa/pkg/domain"
)

func backends(t *testing.T) map[string]func() (Backend, Backend) {
	t.Helper()
	return map[string]func() (Backend, Backend){
		"memory": func() (Backend, Backend) { return NewMemoryBackend(), NewMemoryBackend() },
		"file": func() (Backend, Backend) {
			dir := t.TempDir()
			return NewFileBackend(filepath.Join(dir, "session.json")), NewFileBackend(filepath.Join(dir, "store.json"))
		},
	}
}

func TestStore_SingleWriter(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			eph, pers := mk()
			s := New(eph, pers, "tok")

			seq := []struct {
				value    string
				remember bool
			}{
				{"a", false}, {"b", true}, {"c", true}, {"d", false}, {"e", true},
			}
			for _, step := range seq {
				require.NoError(t, s.Set(step.value, step.remember))

				_, inEph := eph.Get("tok")
				_, inPers := pers.Get("tok")
				if inEph == inPers {
					t.Fatalf("after Set(%q, %v): ephemeral=%v persistent=%v, want exactly one", step.value, step.remember, inEph, inPers)
				}
				got, p, ok := s.Lookup()
				require.True(t, ok)
				require.Equal(t, step.value, got)
				want := domain.Ephemeral
				if step.remember {
					want = domain.Remembered
				}
				require.Equal(t, want, p)
			}
		})
	}
}

func TestStore_ClearIdempotent(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			eph, pers := mk()
			s := New(eph, pers, "tok")

			require.NoError(t, s.Clear())
			require.NoError(t, s.Set("x", true))
			require.NoError(t, s.Clear())
			require.NoError(t, s.Clear())

			if _, ok := s.Get(); ok {
				t.Fatal("Get() found a value after Clear()")
			}
			_, inEph := eph.Get("tok")
			_, inPers := pers.Get("tok")
			require.False(t, inEph)
			require.False(t, inPers)
		})
	}
}

func TestStore_EphemeralWins(t *testing.T) {
	eph, pers := NewMemoryBackend(), NewMemoryBackend()
	require.NoError(t, pers.Set("tok", "durable"))
	require.NoError(t, eph.Set("tok", "tab"))

	got, ok := New(eph, pers, "tok").Get()
	require.True(t, ok)
	require.Equal(t, "tab", got)
}

func TestStore_KeysAreIndependent(t *testing.T) {
	eph, pers := NewMemoryBackend(), NewMemoryBackend()
	user := New(eph, pers, domain.UserPrincipal.TokenKey)
	pharmacy := New(eph, pers, domain.PharmacyPrincipal.TokenKey)

	require.NoError(t, user.Set("u", false))
	require.NoError(t, pharmacy.Set("p", true))
	require.NoError(t, user.Clear())

	got, ok := pharmacy.Get()
	require.True(t, ok)
	require.Equal(t, "p", got)
}

func TestFileBackend_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	f := NewFileBackend(path)
	require.NoError(t, f.Set("k", "v"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	// Another backend on the same file sees the write.
	v, ok := NewFileBackend(path).Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, f.Delete("k"))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "empty store file should be removed")
}

func TestFileBackend_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f := NewFileBackend(path)
	_, ok := f.Get("k")
	require.False(t, ok)
	require.NoError(t, f.Set("k", "v"))
	v, _ := f.Get("k")
	require.Equal(t, "v", v)
}

func TestCookies_RoundTrip(t *testing.T) {
	base, _ := url.Parse("https://api.nexahealth.test")
	jar, _ := cookiejar.New(nil)
	jar.SetCookies(&url.URL{Scheme: "https", Host: "api.nexahealth.test", Path: "/auth/refresh"}, []*http.Cookie{
		{Name: "nexahealth_refresh_token", Value: "r1", Path: "/auth/refresh"},
	})
	jar.SetCookies(base, []*http.Cookie{{Name: "guest_session_id", Value: "g1", Path: "/"}})

	s := New(NewMemoryBackend(), NewMemoryBackend(), "cookies")
	require.NoError(t, SaveCookies(s, jar, base, []string{"/", "/auth/refresh"}, true))

	restored, _ := cookiejar.New(nil)
	require.NoError(t, LoadCookies(s, restored, base))

	refresh := restored.Cookies(&url.URL{Scheme: "https", Host: "api.nexahealth.test", Path: "/auth/refresh"})
	names := map[string]string{}
	for _, c := range refresh {
		names[c.Name] = c.Value
	}
	require.Equal(t, "r1", names["nexahealth_refresh_token"])
	require.Equal(t, "g1", names["guest_session_id"])

	// The refresh cookie stays scoped to its path.
	for _, c := range restored.Cookies(base) {
		if c.Name == "nexahealth_refresh_token" {
			t.Fatal("refresh cookie leaked to /")
		}
	}
}

func TestSaveCookies_EmptyJarClears(t *testing.T) {
	base, _ := url.Parse("https://api.nexahealth.test")
	s := New(NewMemoryBackend(), NewMemoryBackend(), "cookies")
	require.NoError(t, s.Set("[]", true))

	jar, _ := cookiejar.New(nil)
	require.NoError(t, SaveCookies(s, jar, base, []string{"/"}, true))
	_, ok := s.Get()
	require.False(t, ok)
}

func TestStore_CompareAndSwap(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			eph, pers := mk()
			s := New(eph, pers, "tok")

			p, ok, err := s.CompareAndSwap("a", "b")
			require.NoError(t, err)
			require.False(t, ok, "swapped into an empty store")
			_, found := s.Get()
			require.False(t, found)

			require.NoError(t, s.Set("a", true))
			p, ok, err = s.CompareAndSwap("a", "b")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, domain.Remembered, p)
			_, inEph := eph.Get("tok")
			require.False(t, inEph, "swap moved the value to the ephemeral backend")

			p, ok, err = s.CompareAndSwap("a", "c")
			require.NoError(t, err)
			require.False(t, ok, "swapped a value the store no longer holds")
			got, gotP, _ := s.Lookup()
			require.Equal(t, "b", got)
			require.Equal(t, domain.Remembered, gotP)

			require.NoError(t, s.Set("d", false))
			p, ok, err = s.CompareAndSwap("d", "e")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, domain.Ephemeral, p)
		})
	}
}

func TestCookies_KeepSecureFlag(t *testing.T) {
	base, _ := url.Parse("https://api.nexahealth.test")
	inner, _ := cookiejar.New(nil)
	jar := NewAttrJar(inner)
	jar.SetCookies(base, []*http.Cookie{{Name: "sid", Value: "s1", Path: "/", Secure: true, HttpOnly: true}})

	s := New(NewMemoryBackend(), NewMemoryBackend(), "cookies")
	require.NoError(t, SaveCookies(s, jar, base, []string{"/"}, true))

	restored, _ := cookiejar.New(nil)
	require.NoError(t, LoadCookies(s, restored, base))

	if got := restored.Cookies(base); len(got) != 1 || got[0].Value != "s1" {
		t.Fatalf("https cookies = %v, want sid=s1", got)
	}
	plain := &url.URL{Scheme: "http", Host: "api.nexahealth.test", Path: "/"}
	if got := restored.Cookies(plain); len(got) != 0 {
		t.Errorf("http cookies = %v, want none for a Secure cookie", got)
	}
}
