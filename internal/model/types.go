package model

// User is the authenticated identity as the backend reports it. The
// backend speaks Turkish field names on the wire ("ad" = first name,
// "soyad" = last name, "rol" = role).
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Ad      string `json:"ad"`
	Soyad   string `json:"soyad"`
	Telefon string `json:"telefon,omitempty"`
	Rol     string `json:"rol,omitempty"`
}

// FullName joins the display name parts.
func (u User) FullName() string {
	if u.Ad == "" {
		return u.Soyad
	}
	if u.Soyad == "" {
		return u.Ad
	}
	return u.Ad + " " + u.Soyad
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is the body returned by giris-yap and kayit-ol. Older
// backend versions used "user" instead of "kullanici"; both are accepted.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Kullanici    *User  `json:"kullanici"`
	UserAlias    *User  `json:"user"`
}

// User returns the identity regardless of which field the backend used.
func (r AuthResponse) User() *User {
	if r.Kullanici != nil {
		return r.Kullanici
	}
	return r.UserAlias
}
