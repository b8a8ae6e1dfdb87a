package domain

// SeedUser is one entry of the user seed file loaded on first start.
type SeedUser struct {
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Roles      []string `yaml:"roles"`
	BirthDate  string   `yaml:"birthdate"`
	Department string   `yaml:"department"`
}

type SeedData struct {
	Users []SeedUser `yaml:"users"`
}
