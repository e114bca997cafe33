package model

// RegisterInput carries the kayit-ol request fields.
type RegisterInput struct {
	Email   string `json:"email"`
	Sifre   string `json:"sifre"`
	Ad      string `json:"ad"`
	Soyad   string `json:"soyad"`
	Telefon string `json:"telefon,omitempty"`
	Rol     string `json:"rol,omitempty"`
}
